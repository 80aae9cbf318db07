package types

// Status is the delivery status of a message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Rank orders statuses; unknown values rank lowest.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Advance returns the status after moving towards to. A move that would
// regress keeps the current status and reports false.
func (s Status) Advance(to Status) (Status, bool) {
	if to.Rank() <= s.Rank() {
		return s, false
	}
	return to, true
}

// Ticks renders the status the way the thread view shows it.
func (s Status) Ticks() string {
	switch s {
	case StatusDelivered, StatusRead:
		return "✓✓"
	case StatusSent:
		return "✓"
	}
	return ""
}
