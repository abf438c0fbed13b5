package dto

import (
	"time"
)

type TagResponse struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type NoteResponse struct {
	Id        string        `json:"id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Tags      []TagResponse `json:"tags"`
	AiSummary *string       `json:"aiSummary"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
}

// GetNotesRequest is also the cache key of a listing page, so field order is part of the key.
type GetNotesRequest struct {
	Page  int `json:"page" validate:"gte=1"`
	Limit int `json:"limit" validate:"gte=1,lte=100"`
}

type GetNotesResponse struct {
	Notes []NoteResponse `json:"notes"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
}

type CreateNoteRequest struct {
	Title   string   `json:"title" validate:"required,max=200"`
	Content string   `json:"content" validate:"required"`
	Tags    []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,required,max=50"`
}

// UpdateNoteRequest is a PATCH: nil fields are left untouched by the backend.
type UpdateNoteRequest struct {
	Id      string   `json:"-" validate:"required"`
	Title   *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content *string  `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,required,max=50"`
}

type DeleteNoteResponse struct {
	Id string `json:"id"`
}

// GenerateSummaryResponse accepts both shapes the backend has used for the summary call.
type GenerateSummaryResponse struct {
	Id        string `json:"id"`
	AiSummary string `json:"aiSummary"`
	Summary   string `json:"summary"`
}

func (r GenerateSummaryResponse) Text() string {
	if r.AiSummary != "" {
		return r.AiSummary
	}
	return r.Summary
}
