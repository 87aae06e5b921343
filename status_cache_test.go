package callrtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCache(t *testing.T) {
	cache := newStatusCache(func(a, b DataRate) bool { return a == b })

	_, ok := cache.last()
	assert.False(t, ok)

	steps := []struct {
		seqnum uint64
		value  DataRate
		want   statusUpdate
	}{
		{5, 100, statusUpdate{accepted: true, changed: true}},
		{5, 200, statusUpdate{}},
		{4, 200, statusUpdate{outOfOrder: true}},
		{6, 100, statusUpdate{accepted: true}},
		{7, 300, statusUpdate{accepted: true, changed: true}},
	}
	for _, step := range steps {
		assert.Equal(t, step.want, cache.update(step.seqnum, step.value), "seqnum %d", step.seqnum)
	}

	value, ok := cache.last()
	assert.True(t, ok)
	assert.Equal(t, DataRate(300), value)
}

func TestStatusCache_FirstMessageWithZeroSeqnum(t *testing.T) {
	cache := newStatusCache(func(a, b SenderStatus) bool { return a.Equal(b) })

	assert.Equal(t, statusUpdate{accepted: true, changed: true}, cache.update(0, SenderStatus{}))
	assert.Equal(t, statusUpdate{}, cache.update(0, SenderStatus{VideoEnabled: Bool(true)}))
}
