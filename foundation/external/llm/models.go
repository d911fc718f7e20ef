package llm

// Message is one role/content turn of the model request context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Fragment is one incremental piece of the streamed response. A non-nil
// Error terminates the stream; Text already received stays valid.
type Fragment struct {
	Text  string
	Error error
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type chatDelta struct {
	Content string `json:"content"`
}

type chatStreamChoice struct {
	Index        int       `json:"index"`
	Delta        chatDelta `json:"delta"`
	FinishReason string    `json:"finish_reason"`
}

type chatStreamResponse struct {
	ID      string             `json:"id"`
	Choices []chatStreamChoice `json:"choices"`
}
