package quiz

import (
	"brainsync-client/internal/chat"
	"brainsync-client/internal/entity"
)

// View is a detached copy of the session for rendering.
type View struct {
	SessionId string
	State     State
	Quiz      entity.Quiz
	Index     int
	Answers   map[string]string
	Result    *entity.ScoreResult
	Chat      []chat.Message
}

func (v View) Current() (entity.Question, bool) {
	if v.State == StateIdle || v.Index >= len(v.Quiz.Questions) {
		return entity.Question{}, false
	}
	return v.Quiz.Questions[v.Index], true
}

func (v View) Answer(questionId string) (string, bool) {
	a, ok := v.Answers[questionId]
	return a, ok
}

func (v View) IsLast() bool {
	return v.Index == len(v.Quiz.Questions)-1
}

func (v View) Percentage() int {
	if v.Result == nil {
		return 0
	}
	return Percentage(v.Result.Score, v.Result.Total)
}

func (v View) Verdict() string {
	return Verdict(v.Percentage())
}

func (v View) Passed() bool {
	return Passed(v.Percentage())
}

func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if s == nil {
		return View{State: StateIdle}
	}

	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	quiz := s.quiz
	quiz.Questions = append([]entity.Question(nil), s.quiz.Questions...)

	return View{
		SessionId: s.id,
		State:     s.state,
		Quiz:      quiz,
		Index:     s.index,
		Answers:   answers,
		Result:    s.result,
		Chat:      s.chat.Messages(),
	}
}
