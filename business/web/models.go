package web

import "github.com/streamersales/goCollectionAgent/business/session"

type productResponse struct {
	Name            string   `json:"name"`
	ID              int      `json:"id"`
	Highlights      []string `json:"highlights"`
	Image           string   `json:"image"`
	Instruction     string   `json:"instruction"`
	DeparturePlace  string   `json:"departure_place,omitempty"`
	DeliveryCompany string   `json:"delivery_company_name,omitempty"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Page      string `json:"page"`
}

type selectRequest struct {
	Name string `json:"name"`
}

type quickReplyRequest struct {
	Text string `json:"text"`
}

type toggleRequest struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// chat websocket frames

type clientFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	AsrText string `json:"asr_text,omitempty"`
}

type serverFrame struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Page     string         `json:"page,omitempty"`
	Turn     *session.Turn  `json:"turn,omitempty"`
	Messages []session.Turn `json:"messages,omitempty"`
	Error    string         `json:"error,omitempty"`
}

const (
	frameHistory  = "history"
	frameFragment = "fragment"
	frameTurn     = "turn"
	frameRedirect = "redirect"
	frameIdle     = "idle"
	frameError    = "error"
)
