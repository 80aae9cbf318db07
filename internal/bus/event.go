package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. The prefix before the first dot is the namespace
// subscribers filter on.
const (
	KindMessageAdded    = "message.added"
	KindMessageUpdated  = "message.updated"
	KindTypingChanged   = "message.typing"
	KindContactsChanged = "state.contacts"
	KindMessagesChanged = "state.messages"
	KindBlockedChanged  = "state.blocked"
	KindProfileChanged  = "state.profile"
	KindStoryPosted     = "story.posted"
	KindStoryUpdated    = "story.updated"
	KindCallStatus      = "call.status_changed"
	KindCallUpdated     = "call.updated"
)
