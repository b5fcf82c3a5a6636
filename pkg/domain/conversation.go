package domain

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// Message is a single entry in a conversation history
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationState is the document persisted between turns for one
// (tenant, conversation) pair.
type ConversationState struct {
	Messages    []Message              `json:"messages"`
	UserMessage string                 `json:"user_message"`
	Response    string                 `json:"response"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// NewConversationState returns the empty state of a conversation's first turn
func NewConversationState() *ConversationState {
	return &ConversationState{
		Messages: []Message{},
		Metadata: map[string]interface{}{},
	}
}

// AppendMessage adds a message to the end of the history
func (s *ConversationState) AppendMessage(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}
