package kit

import "context"

// Message is one transcript entry as the host chat application stores it.
// System entries (greetings, notes, command echoes) are excluded from all
// trigger counting.
type Message struct {
	IsUser   bool
	IsSystem bool
	SwipeID  int
	Text     string
}

// EventKind classifies a chat activity event.
type EventKind int

const (
	EventMessageReceived EventKind = iota
	EventUserMessageRendered
	EventChatChanged
	EventMessageDeleted
	EventMessageSwiped
	EventCharacterDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventMessageReceived:
		return "message-received"
	case EventUserMessageRendered:
		return "user-message-rendered"
	case EventChatChanged:
		return "chat-changed"
	case EventMessageDeleted:
		return "message-deleted"
	case EventMessageSwiped:
		return "message-swiped"
	case EventCharacterDeleted:
		return "character-deleted"
	default:
		return "unknown"
	}
}

// Event is one chat activity event delivered by a host adapter.
//
// MessageIndex is only meaningful for message-received and message-swiped.
// CharacterID is only meaningful for character-deleted.
type Event struct {
	Kind         EventKind
	ChatID       string
	MessageIndex int
	CharacterID  string
}

// Transcripts gives read access to the live transcript of a chat.
// The returned slice must not be mutated by callers.
type Transcripts interface {
	Messages(chatID string) []Message
}

// CommandExecutor runs an opaque command string on the host. The engine
// forwards task command payloads verbatim and does not retry on error.
type CommandExecutor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// ChatTarget addresses a chat on the host, for sinks that write back into
// the conversation (e.g. the rate-limited log sink).
type ChatTarget struct {
	ChatID string
}

// Sender posts plain text into a chat. Implemented by host adapters.
type Sender interface {
	Send(ctx context.Context, to ChatTarget, text string) error
}
