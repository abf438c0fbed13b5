// Package quiz drives one interactive quiz at a time: answering, submitting and the
// tutor chat on the review screen.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"brainsync-client/internal/chat"
	"brainsync-client/internal/entity"
	"brainsync-client/internal/pkg/logger"

	"github.com/google/uuid"
)

const TutorErrorText = "⚠️ Error asking tutor."

var (
	ErrNoSession        = errors.New("no quiz in progress")
	ErrEmptyQuiz        = errors.New("quiz has no questions")
	ErrBusy             = errors.New("quiz is being submitted")
	ErrFinished         = errors.New("quiz already submitted")
	ErrNotReviewing     = errors.New("quiz has not been submitted yet")
	ErrNotAnswered      = errors.New("current question is not answered")
	ErrInvalidOption    = errors.New("option is not one of the question's choices")
	ErrFirstQuestion    = errors.New("already at the first question")
	ErrLastQuestion     = errors.New("already at the last question")
	ErrNotLastQuestion  = errors.New("submit is only allowed from the last question")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrSessionAbandoned = errors.New("quiz session was closed or replaced")
)

type State int

const (
	StateIdle State = iota
	StateNavigating
	StateSubmitting
	StateReviewing
)

func (s State) String() string {
	switch s {
	case StateNavigating:
		return "navigating"
	case StateSubmitting:
		return "submitting"
	case StateReviewing:
		return "reviewing"
	}
	return "idle"
}

// Backend is the part of the quiz API the machine calls.
type Backend interface {
	Submit(ctx context.Context, quizId string, answers map[string]string) (*entity.ScoreResult, error)
	AskTutor(ctx context.Context, quizId, question string) (string, error)
}

type session struct {
	id      string
	quiz    entity.Quiz
	state   State
	index   int
	answers map[string]string
	result  *entity.ScoreResult
	chat    chat.Transcript

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) current() entity.Question {
	return s.quiz.Questions[s.index]
}

func (s *session) last() bool {
	return s.index == len(s.quiz.Questions)-1
}

// Machine owns the current quiz session. All transitions are serialized by mu; network
// calls run outside it and are matched back to their session by generation.
type Machine struct {
	backend Backend
	logger  logger.ILogger
	now     func() time.Time

	mu         sync.Mutex
	session    *session
	generation uint64

	// tutorMu keeps tutor questions in the order they were asked.
	tutorMu sync.Mutex
}

func NewMachine(backend Backend, log logger.ILogger) *Machine {
	return &Machine{backend: backend, logger: log, now: time.Now}
}

// Open replaces whatever session exists with a fresh one over q.
func (m *Machine) Open(q entity.Quiz) error {
	if len(q.Questions) == 0 {
		return ErrEmptyQuiz
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.dropLocked()
	ctx, cancel := context.WithCancel(context.Background())
	m.session = &session{
		id:      uuid.NewString(),
		quiz:    q,
		state:   StateNavigating,
		answers: make(map[string]string, len(q.Questions)),
		ctx:     ctx,
		cancel:  cancel,
	}

	m.logger.Info("Quiz", "Session opened", map[string]interface{}{
		"session_id": m.session.id,
		"quiz_id":    q.Id,
		"questions":  len(q.Questions),
	})
	return nil
}

// Close destroys the session. In-flight calls are cancelled and their results dropped.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
}

func (m *Machine) dropLocked() {
	m.generation++
	if m.session == nil {
		return
	}
	m.session.cancel()
	m.logger.Debug("Quiz", "Session closed", map[string]interface{}{"session_id": m.session.id})
	m.session = nil
}

func (m *Machine) Select(option string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.navigatingLocked()
	if err != nil {
		return err
	}
	q := s.current()
	if !q.HasOption(option) {
		return ErrInvalidOption
	}
	s.answers[q.Id] = option
	return nil
}

func (m *Machine) Next() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.navigatingLocked()
	if err != nil {
		return err
	}
	if _, ok := s.answers[s.current().Id]; !ok {
		return ErrNotAnswered
	}
	if s.last() {
		return ErrLastQuestion
	}
	s.index++
	return nil
}

func (m *Machine) Prev() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.navigatingLocked()
	if err != nil {
		return err
	}
	if s.index == 0 {
		return ErrFirstQuestion
	}
	s.index--
	return nil
}

func (m *Machine) navigatingLocked() (*session, error) {
	if m.session == nil {
		return nil, ErrNoSession
	}
	switch m.session.state {
	case StateSubmitting:
		return nil, ErrBusy
	case StateReviewing:
		return nil, ErrFinished
	}
	return m.session, nil
}

// Submit sends the answers. On failure the session goes back to the last question with
// every answer kept.
func (m *Machine) Submit(ctx context.Context) (*entity.ScoreResult, error) {
	// 1. Validate & enter Submitting
	m.mu.Lock()
	s, err := m.navigatingLocked()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if !s.last() {
		m.mu.Unlock()
		return nil, ErrNotLastQuestion
	}
	if _, ok := s.answers[s.current().Id]; !ok {
		m.mu.Unlock()
		return nil, ErrNotAnswered
	}
	s.state = StateSubmitting
	gen := m.generation
	quizId := s.quiz.Id
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	callCtx, cancel := bind(ctx, s.ctx)
	m.mu.Unlock()
	defer cancel()

	// 2. Call
	result, err := m.backend.Submit(callCtx, quizId, answers)

	// 3. Apply, unless the session moved on
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return nil, abandoned(err)
	}
	if err != nil {
		s.state = StateNavigating
		m.logger.Warn("Quiz", "Submit failed", map[string]interface{}{"quiz_id": quizId, "error": err.Error()})
		return nil, err
	}
	s.state = StateReviewing
	s.result = result
	m.logger.Info("Quiz", "Quiz submitted", map[string]interface{}{
		"quiz_id": quizId,
		"score":   result.Score,
		"total":   result.Total,
	})
	return result, nil
}

// AskTutor posts a question about the reviewed quiz. The user message is appended right
// away and stays even when the call fails; the failure is shown as TutorErrorText.
func (m *Machine) AskTutor(ctx context.Context, question string) (chat.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return chat.Message{}, ErrEmptyQuestion
	}

	m.tutorMu.Lock()
	defer m.tutorMu.Unlock()

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return chat.Message{}, ErrNoSession
	}
	s := m.session
	if s.state != StateReviewing {
		m.mu.Unlock()
		return chat.Message{}, ErrNotReviewing
	}
	s.chat.Append(chat.RoleUser, question, m.now())
	gen := m.generation
	quizId := s.quiz.Id
	callCtx, cancel := bind(ctx, s.ctx)
	m.mu.Unlock()
	defer cancel()

	answer, err := m.backend.AskTutor(callCtx, quizId, question)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return chat.Message{}, abandoned(err)
	}
	if err != nil {
		m.logger.Warn("Quiz", "Tutor call failed", map[string]interface{}{"quiz_id": quizId, "error": err.Error()})
		return s.chat.Append(chat.RoleAI, TutorErrorText, m.now()), err
	}
	return s.chat.Append(chat.RoleAI, answer, m.now()), nil
}

// abandoned keeps the call's own error visible, e.g. a 401 that ended the session.
func abandoned(err error) error {
	if err == nil {
		return ErrSessionAbandoned
	}
	return fmt.Errorf("%w: %w", ErrSessionAbandoned, err)
}

// bind derives a call context that also ends when the session does.
func bind(ctx, sessionCtx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sessionCtx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}
