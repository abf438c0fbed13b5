package entity

import (
	"time"
)

// Tag is a label attached to a note. Tags on a note form an ordered set keyed by Id.
type Tag struct {
	Id   string
	Name string
}

type Note struct {
	Id        string
	Title     string
	Content   string
	Tags      []Tag
	AiSummary *string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// HasSummary reports whether the backend already generated an AI summary ("AI Ready").
func (n Note) HasSummary() bool {
	return n.AiSummary != nil && *n.AiSummary != ""
}

func (n Note) TagNames() []string {
	names := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		names = append(names, t.Name)
	}
	return names
}

// NotesPage is the materialized result of one listing page.
type NotesPage struct {
	Items    []Note
	Page     int
	PageSize int
	Total    int
}

func (p NotesPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

func (p NotesPage) Find(id string) (Note, bool) {
	for _, n := range p.Items {
		if n.Id == id {
			return n, true
		}
	}
	return Note{}, false
}
