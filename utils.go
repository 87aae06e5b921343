package callrtc

import (
	"reflect"

	"github.com/imdario/mergo"
)

type ptrTransformers struct{}

// overwrites pointer type
func (ptrTransformers) Transformer(tp reflect.Type) func(dst, src reflect.Value) error {
	if tp.Kind() == reflect.Ptr {
		return func(dst, src reflect.Value) error {
			if !src.IsNil() {
				if dst.CanSet() {
					dst.Set(src)
				} else {
					dst = src
				}
			}
			return nil
		}
	}
	return nil
}

// override copies the non-empty fields of src over dst. Pointer fields are replaced as a
// whole, so a pointer to false still overrides a pointer to true.
func override(dst, src interface{}) error {
	return mergo.Merge(dst, src,
		mergo.WithOverride,
		mergo.WithTypeCheck,
		mergo.WithTransformers(ptrTransformers{}),
	)
}

// fillDefaults sets the empty fields of dst from defaults.
func fillDefaults(dst, defaults interface{}) error {
	return mergo.Merge(dst, defaults)
}
