package callrtc

// statusCache keeps the last accepted (seqnum, value) of a remote status message. Remote peers
// retransmit status messages over RTP data, so only a strictly greater seqnum is accepted.
type statusCache[T any] struct {
	seqnum uint64
	value  T
	valid  bool
	equal  func(a, b T) bool
}

type statusUpdate struct {
	// accepted is false for stale or duplicate messages, which are dropped.
	accepted bool
	// changed is true when the accepted value differs from the previous one.
	changed bool
	// outOfOrder is true when the seqnum is strictly lower than the cached one.
	outOfOrder bool
}

func newStatusCache[T any](equal func(a, b T) bool) *statusCache[T] {
	return &statusCache[T]{equal: equal}
}

func (c *statusCache[T]) update(seqnum uint64, value T) statusUpdate {
	if !c.valid {
		c.seqnum, c.value, c.valid = seqnum, value, true
		return statusUpdate{accepted: true, changed: true}
	}
	if seqnum <= c.seqnum {
		return statusUpdate{outOfOrder: seqnum < c.seqnum}
	}
	changed := !c.equal(c.value, value)
	c.seqnum, c.value = seqnum, value

	return statusUpdate{accepted: true, changed: changed}
}

func (c *statusCache[T]) last() (value T, ok bool) {
	return c.value, c.valid
}
