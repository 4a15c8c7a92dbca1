package model

import "strconv"

// OptionalID is an externally supplied resource identifier that may be absent.
// The zero value is "not set".
type OptionalID struct {
	value int64
	set   bool
}

// ID returns a set identifier.
func ID(v int64) OptionalID {
	return OptionalID{value: v, set: true}
}

// IDFromPtr converts a decoded JSON field into an OptionalID.
func IDFromPtr(v *int64) OptionalID {
	if v == nil {
		return OptionalID{}
	}
	return ID(*v)
}

// Get returns the value and whether it is set.
func (id OptionalID) Get() (int64, bool) {
	return id.value, id.set
}

// IsSet reports whether the identifier was supplied.
func (id OptionalID) IsSet() bool { return id.set }

// String formats the identifier as a path segment, or "" when unset.
func (id OptionalID) String() string {
	if !id.set {
		return ""
	}
	return strconv.FormatInt(id.value, 10)
}
