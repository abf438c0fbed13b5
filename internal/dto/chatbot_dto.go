package dto

import "time"

type ChatWithNotesRequest struct {
	Question string `json:"question" validate:"required"`
}

type ChatAnswerResponse struct {
	Answer string `json:"answer"`
}

// LimitExceededData is the data payload of 429 responses from the AI endpoints.
type LimitExceededData struct {
	Limit            int       `json:"limit"`
	Used             int       `json:"used"`
	ResetAfter       time.Time `json:"reset_after"`
	ShowModalPricing bool      `json:"show_modal_pricing"`
}
