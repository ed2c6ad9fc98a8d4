package models

// RequestStatus is the shared lifecycle for friend requests and group
// invitations. Requests start pending and settle exactly once; accepted and
// declined are terminal.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusDeclined RequestStatus = "declined"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave this status.
func (s RequestStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}
