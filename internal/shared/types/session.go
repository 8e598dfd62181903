package types

// DefaultSessionTitle is the title given to freshly created conversations
const DefaultSessionTitle = "New Conversation"

// MessageRole identifies the author of a chat message
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleModel MessageRole = "model"
)

// GroundingURL is a source citation attached to a model message
type GroundingURL struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ChatMessage is a single message within a conversation. The core treats
// message content as opaque; it only stores and round-trips it.
type ChatMessage struct {
	ID            string         `json:"id"`
	Role          MessageRole    `json:"role"`
	Text          string         `json:"text"`
	Images        []string       `json:"images,omitempty"`
	IsThinking    bool           `json:"isThinking,omitempty"`
	GroundingURLs []GroundingURL `json:"groundingUrls,omitempty"`
}

// ChatSession represents a saved conversation thread. Identity is the ID,
// which is time-derived and unique across the collection. LastModified is
// a Unix millisecond timestamp, matching the persisted layout.
type ChatSession struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Messages     []ChatMessage `json:"messages"`
	LastModified int64         `json:"lastModified"`
	IsGroupMode  bool          `json:"isGroupMode,omitempty"`
}

// SessionStats contains conversation store statistics
type SessionStats struct {
	TotalSessions   int     `json:"total_sessions"`
	TotalMessages   int     `json:"total_messages"`
	ActiveSessionID *string `json:"active_session_id,omitempty"`
}
