// FILE: internal/service/note_service.go
package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"brainsync-client/internal/api"
	"brainsync-client/internal/apperr"
	"brainsync-client/internal/cache"
	"brainsync-client/internal/dto"
	"brainsync-client/internal/entity"
	"brainsync-client/internal/mapper"
	"brainsync-client/internal/pkg/validation"
)

const (
	DefaultPage      = 1
	DefaultPageLimit = 10
)

// AuthGate is the private-route check protected operations run before any request.
type AuthGate interface {
	RequireAuth() error
}

type INoteService interface {
	List(ctx context.Context, req dto.GetNotesRequest) (*cache.Subscription[entity.NotesPage], error)
	Create(ctx context.Context, req *dto.CreateNoteRequest) (*entity.Note, error)
	Update(ctx context.Context, req *dto.UpdateNoteRequest) (*entity.Note, error)
	Delete(ctx context.Context, id string) error
	GenerateSummary(ctx context.Context, id string) (string, error)
	ChatWithNotes(ctx context.Context, question string) (string, error)
}

type noteService struct {
	engine *cache.Engine
	gate   AuthGate
	mapper *mapper.NoteMapper

	getNotes        cache.QueryDef[dto.GetNotesRequest, entity.NotesPage]
	createNote      cache.MutationDef[*dto.CreateNoteRequest, *entity.Note]
	updateNote      cache.MutationDef[*dto.UpdateNoteRequest, *entity.Note]
	deleteNote      cache.MutationDef[string, struct{}]
	generateSummary cache.MutationDef[string, string]
	chatWithNotes   cache.MutationDef[string, string]
}

func NewNoteService(engine *cache.Engine, client *api.Client, gate AuthGate) INoteService {
	s := &noteService{
		engine: engine,
		gate:   gate,
		mapper: mapper.NewNoteMapper(),
	}

	s.getNotes = cache.QueryDef[dto.GetNotesRequest, entity.NotesPage]{
		Name:     "getNotes",
		Provides: []cache.Tag{cache.TagNotes},
		Fetch: func(ctx context.Context, req dto.GetNotesRequest) (entity.NotesPage, error) {
			var res dto.GetNotesResponse
			err := client.Do(ctx, api.Request{
				Method: http.MethodGet,
				Path:   "/notes",
				Query: url.Values{
					"page":  {strconv.Itoa(req.Page)},
					"limit": {strconv.Itoa(req.Limit)},
				},
			}, &res)
			if err != nil {
				return entity.NotesPage{}, err
			}
			return s.mapper.ToPage(&res, req), nil
		},
	}

	s.createNote = cache.MutationDef[*dto.CreateNoteRequest, *entity.Note]{
		Name:        "createNote",
		Invalidates: []cache.Tag{cache.TagNotes},
		Run: func(ctx context.Context, req *dto.CreateNoteRequest) (*entity.Note, error) {
			var res dto.NoteResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/notes", Body: req}, &res); err != nil {
				return nil, err
			}
			return s.mapper.ToEntity(&res), nil
		},
	}

	// A note that is gone on the server is gone from every cached page too.
	s.updateNote = cache.MutationDef[*dto.UpdateNoteRequest, *entity.Note]{
		Name:        "updateNote",
		Invalidates: []cache.Tag{cache.TagNotes},
		OnNotFound:  []cache.Tag{cache.TagNotes},
		Run: func(ctx context.Context, req *dto.UpdateNoteRequest) (*entity.Note, error) {
			var res dto.NoteResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPatch, Path: "/notes/" + url.PathEscape(req.Id), Body: req}, &res); err != nil {
				return nil, err
			}
			return s.mapper.ToEntity(&res), nil
		},
	}

	s.deleteNote = cache.MutationDef[string, struct{}]{
		Name:        "deleteNote",
		Invalidates: []cache.Tag{cache.TagNotes},
		OnNotFound:  []cache.Tag{cache.TagNotes},
		Run: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, client.Do(ctx, api.Request{Method: http.MethodDelete, Path: "/notes/" + url.PathEscape(id)}, nil)
		},
	}

	s.generateSummary = cache.MutationDef[string, string]{
		Name:        "generateSummary",
		Invalidates: []cache.Tag{cache.TagNotes},
		OnNotFound:  []cache.Tag{cache.TagNotes},
		Run: func(ctx context.Context, id string) (string, error) {
			var res dto.GenerateSummaryResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/notes/" + url.PathEscape(id) + "/summary"}, &res); err != nil {
				return "", err
			}
			return res.Text(), nil
		},
	}

	s.chatWithNotes = cache.MutationDef[string, string]{
		Name: "chatWithNotes",
		Run: func(ctx context.Context, question string) (string, error) {
			var res dto.ChatAnswerResponse
			err := client.Do(ctx, api.Request{
				Method: http.MethodPost,
				Path:   "/notes/chat",
				Body:   dto.ChatWithNotesRequest{Question: question},
			}, &res)
			if err != nil {
				return "", err
			}
			return res.Answer, nil
		},
	}

	return s
}

// List subscribes to one page of notes. The caller owns the subscription and must
// Unsubscribe when it stops displaying the page.
func (s *noteService) List(ctx context.Context, req dto.GetNotesRequest) (*cache.Subscription[entity.NotesPage], error) {
	if err := s.gate.RequireAuth(); err != nil {
		return nil, err
	}
	if req.Page == 0 {
		req.Page = DefaultPage
	}
	if req.Limit == 0 {
		req.Limit = DefaultPageLimit
	}
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}
	return cache.Query(s.engine, s.getNotes, req), nil
}

func (s *noteService) Create(ctx context.Context, req *dto.CreateNoteRequest) (*entity.Note, error) {
	if err := s.gate.RequireAuth(); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}
	return cache.Mutate(ctx, s.engine, s.createNote, req)
}

func (s *noteService) Update(ctx context.Context, req *dto.UpdateNoteRequest) (*entity.Note, error) {
	if err := s.gate.RequireAuth(); err != nil {
		return nil, err
	}
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.Title == nil && req.Content == nil && req.Tags == nil {
		return nil, apperr.NewValidation("nothing to update", nil)
	}
	return cache.Mutate(ctx, s.engine, s.updateNote, req)
}

func (s *noteService) Delete(ctx context.Context, id string) error {
	if err := s.gate.RequireAuth(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return apperr.NewValidation("note id is required", map[string]any{"Id": "required"})
	}
	_, err := cache.Mutate(ctx, s.engine, s.deleteNote, id)
	return err
}

func (s *noteService) GenerateSummary(ctx context.Context, id string) (string, error) {
	if err := s.gate.RequireAuth(); err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", apperr.NewValidation("note id is required", map[string]any{"Id": "required"})
	}
	return cache.Mutate(ctx, s.engine, s.generateSummary, id)
}

func (s *noteService) ChatWithNotes(ctx context.Context, question string) (string, error) {
	if err := s.gate.RequireAuth(); err != nil {
		return "", err
	}
	req := dto.ChatWithNotesRequest{Question: strings.TrimSpace(question)}
	if err := validation.ValidateRequest(req); err != nil {
		return "", err
	}
	return cache.Mutate(ctx, s.engine, s.chatWithNotes, req.Question)
}
