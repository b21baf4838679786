package models

// Roles of a follow-up message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FollowupMessage is one turn in a follow-up thread. Messages are append-only.
type FollowupMessage struct {
	Role    string `json:"role"    yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// CloneThread copies a thread so callers can append without aliasing. A nil thread
// becomes an empty one.
func CloneThread(thread []FollowupMessage) []FollowupMessage {
	out := make([]FollowupMessage, len(thread))
	copy(out, thread)
	return out
}
