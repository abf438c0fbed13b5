package mapper

import (
	"brainsync-client/internal/dto"
	"brainsync-client/internal/entity"
)

type NoteMapper struct{}

func NewNoteMapper() *NoteMapper {
	return &NoteMapper{}
}

func (m *NoteMapper) ToEntity(n *dto.NoteResponse) *entity.Note {
	if n == nil {
		return nil
	}

	// Tags form an ordered set: first occurrence of an id wins.
	seen := make(map[string]struct{}, len(n.Tags))
	tags := make([]entity.Tag, 0, len(n.Tags))
	for _, t := range n.Tags {
		key := t.Id
		if key == "" {
			key = t.Name
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, entity.Tag{Id: t.Id, Name: t.Name})
	}

	return &entity.Note{
		Id:        n.Id,
		Title:     n.Title,
		Content:   n.Content,
		Tags:      tags,
		AiSummary: n.AiSummary,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (m *NoteMapper) ToEntities(notes []dto.NoteResponse) []entity.Note {
	out := make([]entity.Note, 0, len(notes))
	for i := range notes {
		out = append(out, *m.ToEntity(&notes[i]))
	}
	return out
}

func (m *NoteMapper) ToPage(res *dto.GetNotesResponse, req dto.GetNotesRequest) entity.NotesPage {
	page := res.Page
	if page == 0 {
		page = req.Page
	}
	limit := res.Limit
	if limit == 0 {
		limit = req.Limit
	}

	return entity.NotesPage{
		Items:    m.ToEntities(res.Notes),
		Page:     page,
		PageSize: limit,
		Total:    res.Total,
	}
}
