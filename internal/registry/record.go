package registry

import (
	"strconv"
)

// Timestamp is a caller-supplied logical instant. The zero value is unset,
// which marks a record as visible at every instant.
type Timestamp struct {
	value int64
	set   bool
}

// Always is the unset Timestamp.
var Always = Timestamp{}

// At returns a set Timestamp for t. At(0) is a real instant, distinct from Always.
func At(t int64) Timestamp {
	return Timestamp{value: t, set: true}
}

// Get returns the instant and whether it is set.
func (ts Timestamp) Get() (int64, bool) {
	return ts.value, ts.set
}

// IsSet reports whether ts holds an instant.
func (ts Timestamp) IsSet() bool {
	return ts.set
}

func (ts Timestamp) String() string {
	if !ts.set {
		return "-"
	}
	return strconv.FormatInt(ts.value, 10)
}

// TTL is an optional lifetime measured in logical clock units. The zero value
// means the record never expires.
type TTL struct {
	value uint64
	set   bool
}

// NoTTL is the unset TTL.
var NoTTL = TTL{}

// ExpiresAfter returns a TTL of d units. ExpiresAfter(0) is visible only at
// its creation instant.
func ExpiresAfter(d uint64) TTL {
	return TTL{value: d, set: true}
}

// Get returns the lifetime and whether it is set.
func (t TTL) Get() (uint64, bool) {
	return t.value, t.set
}

// IsSet reports whether a lifetime was given.
func (t TTL) IsSet() bool {
	return t.set
}

func (t TTL) String() string {
	if !t.set {
		return "-"
	}
	return strconv.FormatUint(t.value, 10)
}

// Record is the metadata stored for one named file.
type Record struct {
	Name      string
	Size      uint64
	CreatedAt Timestamp
	TTL       TTL
}

// VisibleAt reports whether the record exists at logical time t: created at or
// before t, and t no later than CreatedAt+TTL. A record without a creation
// time is always visible.
func (r Record) VisibleAt(t int64) bool {
	created, ok := r.CreatedAt.Get()
	if !ok {
		return true
	}
	if created > t {
		return false
	}
	ttl, ok := r.TTL.Get()
	if !ok {
		return true
	}
	// t >= created, so the unsigned difference is exact.
	return uint64(t)-uint64(created) <= ttl
}
