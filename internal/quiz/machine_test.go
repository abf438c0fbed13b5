package quiz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/chat"
	"brainsync-client/internal/entity"
	"brainsync-client/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	submitted []map[string]string
	submitErr error
	tutorErr  error
	gate      chan struct{}
	started   chan struct{}
}

func (f *fakeBackend) wait(ctx context.Context) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Submit(ctx context.Context, quizId string, answers map[string]string) (*entity.ScoreResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, answers)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	score := 0
	for _, a := range answers {
		if a == "B" {
			score++
		}
	}
	return &entity.ScoreResult{Score: score, Total: 3}, nil
}

func (f *fakeBackend) AskTutor(ctx context.Context, quizId, question string) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	if f.tutorErr != nil {
		return "", f.tutorErr
	}
	return "Tutor: " + question, nil
}

func sampleQuiz() entity.Quiz {
	q := entity.Quiz{Id: "quiz-1", Title: "Go basics"}
	for _, id := range []string{"q1", "q2", "q3"} {
		q.Questions = append(q.Questions, entity.Question{Id: id, QuestionText: id + "?", Options: []string{"A", "B", "C"}})
	}
	return q
}

func answerAll(t *testing.T, m *Machine, picks ...string) {
	t.Helper()
	for i, p := range picks {
		require.NoError(t, m.Select(p))
		if i < len(picks)-1 {
			require.NoError(t, m.Next())
		}
	}
}

func newMachine(b Backend) *Machine {
	return NewMachine(b, logger.NewNopLogger())
}

func TestPercentageAndVerdict(t *testing.T) {
	tests := []struct {
		score, total int
		want         int
		verdict      string
		passed       bool
	}{
		{score: 0, total: 0, want: 0, verdict: "Keep practicing!"},
		{score: 1, total: 3, want: 33, verdict: "Keep practicing!"},
		{score: 2, total: 3, want: 67, verdict: "Keep practicing!", passed: true},
		{score: 4, total: 5, want: 80, verdict: "Excellent work!", passed: true},
		{score: 3, total: 3, want: 100, verdict: "Excellent work!", passed: true},
	}

	for _, tt := range tests {
		p := Percentage(tt.score, tt.total)
		assert.Equal(t, tt.want, p)
		assert.Equal(t, tt.verdict, Verdict(p))
		assert.Equal(t, tt.passed, Passed(p))
	}
}

func TestOpenRejectsEmptyQuiz(t *testing.T) {
	m := newMachine(&fakeBackend{})
	assert.ErrorIs(t, m.Open(entity.Quiz{Id: "empty"}), ErrEmptyQuiz)
	assert.Equal(t, StateIdle, m.Snapshot().State)
}

func TestNavigationRules(t *testing.T) {
	m := newMachine(&fakeBackend{})
	require.NoError(t, m.Open(sampleQuiz()))

	assert.ErrorIs(t, m.Prev(), ErrFirstQuestion)
	assert.ErrorIs(t, m.Next(), ErrNotAnswered)
	assert.ErrorIs(t, m.Select("Z"), ErrInvalidOption)

	require.NoError(t, m.Select("A"))
	require.NoError(t, m.Next())
	require.NoError(t, m.Select("B"))
	require.NoError(t, m.Prev())

	v := m.Snapshot()
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, map[string]string{"q1": "A", "q2": "B"}, v.Answers)

	require.NoError(t, m.Next())
	require.NoError(t, m.Next())
	require.NoError(t, m.Select("C"))
	assert.ErrorIs(t, m.Next(), ErrLastQuestion)
	assert.True(t, m.Snapshot().IsLast())
}

func TestSubmitOnlyFromAnsweredLastQuestion(t *testing.T) {
	b := &fakeBackend{}
	m := newMachine(b)
	require.NoError(t, m.Open(sampleQuiz()))

	require.NoError(t, m.Select("A"))
	_, err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotLastQuestion)

	require.NoError(t, m.Next())
	require.NoError(t, m.Select("B"))
	require.NoError(t, m.Next())
	_, err = m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotAnswered)
	assert.Empty(t, b.submitted)
}

func TestSubmitSuccessMovesToReview(t *testing.T) {
	b := &fakeBackend{}
	m := newMachine(b)
	require.NoError(t, m.Open(sampleQuiz()))
	answerAll(t, m, "B", "B", "A")

	res, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)

	v := m.Snapshot()
	assert.Equal(t, StateReviewing, v.State)
	assert.Equal(t, 67, v.Percentage())
	assert.Equal(t, "Keep practicing!", v.Verdict())
	assert.True(t, v.Passed())

	assert.ErrorIs(t, m.Select("A"), ErrFinished)
	assert.ErrorIs(t, m.Prev(), ErrFinished)
}

func TestSubmitFailureKeepsAnswers(t *testing.T) {
	b := &fakeBackend{submitErr: apperr.NewServer(500, "boom")}
	m := newMachine(b)
	require.NoError(t, m.Open(sampleQuiz()))
	answerAll(t, m, "A", "B", "C")

	_, err := m.Submit(context.Background())
	require.Error(t, err)

	v := m.Snapshot()
	assert.Equal(t, StateNavigating, v.State)
	assert.Equal(t, 2, v.Index)
	assert.Equal(t, map[string]string{"q1": "A", "q2": "B", "q3": "C"}, v.Answers)
	assert.Nil(t, v.Result)

	b.submitErr = nil
	_, err = m.Submit(context.Background())
	require.NoError(t, err)
}

func TestSubmittingBlocksNavigation(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	m := newMachine(b)
	require.NoError(t, m.Open(sampleQuiz()))
	answerAll(t, m, "B", "B", "B")

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background())
		done <- err
	}()
	<-b.started

	assert.Equal(t, StateSubmitting, m.Snapshot().State)
	assert.ErrorIs(t, m.Prev(), ErrBusy)
	assert.ErrorIs(t, m.Select("A"), ErrBusy)
	_, err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(b.gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateReviewing, m.Snapshot().State)
}

func TestReopenAbandonsInFlightSubmit(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	m := newMachine(b)
	require.NoError(t, m.Open(sampleQuiz()))
	answerAll(t, m, "B", "B", "B")

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background())
		done <- err
	}()
	<-b.started

	next := sampleQuiz()
	next.Id = "quiz-2"
	require.NoError(t, m.Open(next))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSessionAbandoned)
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned submit did not return")
	}

	v := m.Snapshot()
	assert.Equal(t, "quiz-2", v.Quiz.Id)
	assert.Equal(t, StateNavigating, v.State)
	assert.Equal(t, 0, v.Index)
	assert.Empty(t, v.Answers)
	assert.Nil(t, v.Result)
}

func TestTutorChat(t *testing.T) {
	tests := []struct {
		name      string
		tutorErr  error
		wantText  string
		wantError bool
	}{
		{name: "reply", wantText: "Tutor: why B?"},
		{name: "failure shows placeholder", tutorErr: errors.New("down"), wantText: TutorErrorText, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{tutorErr: tt.tutorErr}
			m := newMachine(b)
			require.NoError(t, m.Open(sampleQuiz()))

			_, err := m.AskTutor(context.Background(), "why B?")
			assert.ErrorIs(t, err, ErrNotReviewing)

			answerAll(t, m, "B", "A", "B")
			_, err = m.Submit(context.Background())
			require.NoError(t, err)

			_, err = m.AskTutor(context.Background(), "   ")
			assert.ErrorIs(t, err, ErrEmptyQuestion)

			reply, err := m.AskTutor(context.Background(), " why B? ")
			if tt.wantError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantText, reply.Text)

			msgs := m.Snapshot().Chat
			require.Len(t, msgs, 2)
			assert.Equal(t, chat.RoleUser, msgs[0].Role)
			assert.Equal(t, "why B?", msgs[0].Text)
			assert.Equal(t, chat.RoleAI, msgs[1].Role)
			assert.Equal(t, tt.wantText, msgs[1].Text)
		})
	}
}

func TestCloseDiscardsLateTutorReply(t *testing.T) {
	b := &fakeBackend{}
	m := newMachine(b)
	require.NoError(t, m.Open(sampleQuiz()))
	answerAll(t, m, "B", "B", "B")
	_, err := m.Submit(context.Background())
	require.NoError(t, err)

	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := m.AskTutor(context.Background(), "explain q2")
		done <- err
	}()
	<-b.started

	m.Close()
	assert.ErrorIs(t, <-done, ErrSessionAbandoned)
	assert.Equal(t, View{State: StateIdle}, m.Snapshot())

	_, err = m.AskTutor(context.Background(), "again")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSnapshotIsDetached(t *testing.T) {
	m := newMachine(&fakeBackend{})
	require.NoError(t, m.Open(sampleQuiz()))
	require.NoError(t, m.Select("A"))

	v := m.Snapshot()
	v.Answers["q1"] = "C"
	v.Quiz.Questions[0].QuestionText = "changed"

	again := m.Snapshot()
	assert.Equal(t, "A", again.Answers["q1"])
	assert.Equal(t, "q1?", again.Quiz.Questions[0].QuestionText)
	assert.NotEmpty(t, again.SessionId)

	q, ok := again.Current()
	require.True(t, ok)
	assert.Equal(t, "q1", q.Id)
}
