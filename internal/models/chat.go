package models

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries the full conversation on every call. The first message
// is the client's seed and is replaced by Instruction.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Instruction string        `json:"instruction"`
}

// QuestionChatRequest is a conversation about one question; the server
// builds the instruction.
type QuestionChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Content string `json:"content"`
}
