package cache

// Tag labels a family of cached entries so that mutations can invalidate them together.
type Tag int

const (
	TagNotes Tag = iota + 1
	TagUser
)

func (t Tag) String() string {
	switch t {
	case TagNotes:
		return "Notes"
	case TagUser:
		return "User"
	}
	return "Unknown"
}

type Status int

const (
	StatusUninitialized Status = iota
	StatusPending
	StatusFulfilled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	}
	return "uninitialized"
}

// Settled reports whether a fetch has completed, successfully or not.
func (s Status) Settled() bool {
	return s == StatusFulfilled || s == StatusRejected
}
