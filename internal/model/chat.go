package model

import "errors"

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant reply and the caller's updated quota.
type ChatResponse struct {
	Reply     string `json:"reply"`
	Remaining int    `json:"remaining"`
}

// Chat constraints
const (
	MaxChatMessageLength = 4000
)

// Chat errors
var (
	ErrMessageRequired = errors.New("chat message is required")
	ErrMessageTooLong  = errors.New("chat message too long")
	ErrChatUnavailable = errors.New("chat assistant unavailable")
)
