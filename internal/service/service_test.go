package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"brainsync-client/internal/api"
	"brainsync-client/internal/apperr"
	"brainsync-client/internal/cache"
	"brainsync-client/internal/dto"
	"brainsync-client/internal/pkg/logger"
	"brainsync-client/internal/session"
	"brainsync-client/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	backend *testutil.Backend
	store   *session.MemoryStore
	guard   *session.Guard
	engine  *cache.Engine
	notes   INoteService
	auth    IAuthService
	quiz    IQuizService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	b := testutil.NewBackend(t)
	log := logger.NewNopLogger()
	store := session.NewMemoryStore()
	guard := session.NewGuard(store, log)
	client := api.NewClient(b.URL, guard, log)
	engine := cache.New(
		cache.WithLogger(log),
		cache.WithRequestTimeout(5*time.Second),
		cache.WithUnauthorizedHandler(guard.ClearSession),
	)
	t.Cleanup(engine.Close)

	return &harness{
		backend: b,
		store:   store,
		guard:   guard,
		engine:  engine,
		notes:   NewNoteService(engine, client, guard),
		auth:    NewAuthService(engine, client, guard, log),
		quiz:    NewQuizService(engine, client, guard),
	}
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	userId := h.backend.AddUser("Ada Lovelace", "ada@example.com", "secret1")
	_, err := h.auth.Login(ctx(t), &dto.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	return userId
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestLoginAttachesBearerToken(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	require.True(t, h.guard.IsAuthenticated())
	token, _ := h.guard.CurrentToken()

	sub, err := h.notes.List(ctx(t), dto.GetNotesRequest{})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	_, err = sub.Wait(ctx(t))
	require.NoError(t, err)

	var seen bool
	for _, r := range h.backend.Requests() {
		if r.Method == http.MethodGet && r.Path == "/notes" {
			assert.Equal(t, "Bearer "+token, r.Authorization)
			seen = true
		}
		if r.Path == "/users/login" {
			assert.Empty(t, r.Authorization)
		}
	}
	assert.True(t, seen)
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser("Ada", "ada@example.com", "secret1")

	_, err := h.auth.Login(ctx(t), &dto.LoginRequest{Email: "ada@example.com", Password: "nope"})

	require.Error(t, err)
	assert.True(t, apperr.IsUnauthorized(err))
	assert.False(t, h.guard.IsAuthenticated())
}

func TestUnauthorizedClearsSessionAndStorage(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.backend.RevokeTokens()

	sub, err := h.notes.List(ctx(t), dto.GetNotesRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = sub.Wait(ctx(t))
	require.Error(t, err)
	assert.True(t, apperr.IsUnauthorized(err))

	assert.Eventually(t, func() bool { return !h.guard.IsAuthenticated() }, time.Second, 5*time.Millisecond)
	_, found, err := h.store.Load(context.Background(), session.StorageKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMutationUnauthorizedClearsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.backend.FailNext(http.MethodPost, "/notes", http.StatusUnauthorized)

	_, err := h.notes.Create(ctx(t), &dto.CreateNoteRequest{Title: "A", Content: "x"})

	require.Error(t, err)
	assert.False(t, h.guard.IsAuthenticated())
}

func TestProtectedOperationsRequireSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.notes.List(ctx(t), dto.GetNotesRequest{})
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	_, err = h.notes.Create(ctx(t), &dto.CreateNoteRequest{Title: "A", Content: "x"})
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	_, err = h.quiz.Generate(ctx(t), "")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	_, err = h.auth.Profile(ctx(t))
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	assert.Empty(t, h.backend.Requests())
}

func TestCreateNoteAppearsOnFirstPage(t *testing.T) {
	h := newHarness(t)
	userId := h.login(t)
	h.backend.SeedNote(userId, "Old", "content")

	sub, err := h.notes.List(ctx(t), dto.GetNotesRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	page, err := sub.Wait(ctx(t))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	created, err := h.notes.Create(ctx(t), &dto.CreateNoteRequest{Title: "  A  ", Content: "body", Tags: []string{"go", "go"}})
	require.NoError(t, err)
	assert.Equal(t, "A", created.Title)
	assert.Len(t, created.Tags, 1, "tags are an ordered set")

	page, err = sub.Wait(ctx(t))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "A", page.Items[0].Title)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, h.backend.CountRequests(http.MethodGet, "/notes"))
}

func TestInvalidationRefetchesEveryWatchedPage(t *testing.T) {
	h := newHarness(t)
	userId := h.login(t)
	for i := 0; i < 3; i++ {
		h.backend.SeedNote(userId, "n", "c")
	}

	p1, err := h.notes.List(ctx(t), dto.GetNotesRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	defer p1.Unsubscribe()
	p2, err := h.notes.List(ctx(t), dto.GetNotesRequest{Page: 2, Limit: 2})
	require.NoError(t, err)
	defer p2.Unsubscribe()

	first, err := p1.Wait(ctx(t))
	require.NoError(t, err)
	second, err := p2.Wait(ctx(t))
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, 2, first.TotalPages())

	require.NoError(t, h.notes.Delete(ctx(t), first.Items[0].Id))

	second, err = p2.Wait(ctx(t))
	require.NoError(t, err)
	assert.Empty(t, second.Items)
	first, err = p1.Wait(ctx(t))
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.Equal(t, 4, h.backend.CountRequests(http.MethodGet, "/notes"))
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	sub, err := h.notes.List(ctx(t), dto.GetNotesRequest{})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	_, err = sub.Wait(ctx(t))
	require.NoError(t, err)

	h.backend.FailNext(http.MethodPost, "/notes", http.StatusInternalServerError)
	_, err = h.notes.Create(ctx(t), &dto.CreateNoteRequest{Title: "A", Content: "x"})

	require.Error(t, err)
	assert.Equal(t, apperr.KindServer, apperr.KindOf(err))
	assert.Equal(t, cache.StatusFulfilled, sub.Snapshot().Status)
	assert.Equal(t, 1, h.backend.CountRequests(http.MethodGet, "/notes"))
	assert.True(t, h.guard.IsAuthenticated())
}

func TestMissingNoteRefreshesListing(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	sub, err := h.notes.List(ctx(t), dto.GetNotesRequest{})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	_, err = sub.Wait(ctx(t))
	require.NoError(t, err)

	err = h.notes.Delete(ctx(t), "note-404")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	_, err = sub.Wait(ctx(t))
	require.NoError(t, err)
	assert.Equal(t, 2, h.backend.CountRequests(http.MethodGet, "/notes"))
}

func TestClientSideValidationSkipsNetwork(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	before := len(h.backend.Requests())

	_, err := h.notes.Create(ctx(t), &dto.CreateNoteRequest{Title: " ", Content: "x"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	_, err = h.notes.Update(ctx(t), &dto.UpdateNoteRequest{Id: "note-1"})
	assert.True(t, apperr.IsValidation(err))

	_, err = h.notes.ChatWithNotes(ctx(t), "   ")
	assert.True(t, apperr.IsValidation(err))

	assert.Len(t, h.backend.Requests(), before)
}

func TestUpdateAndSummarize(t *testing.T) {
	h := newHarness(t)
	userId := h.login(t)
	id := h.backend.SeedNote(userId, "Draft", "content")

	title := "Final"
	updated, err := h.notes.Update(ctx(t), &dto.UpdateNoteRequest{Id: id, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "content", updated.Content)

	summary, err := h.notes.GenerateSummary(ctx(t), id)
	require.NoError(t, err)
	assert.Equal(t, "Summary of Final", summary)

	sub, err := h.notes.List(ctx(t), dto.GetNotesRequest{})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	page, err := sub.Wait(ctx(t))
	require.NoError(t, err)
	note, ok := page.Find(id)
	require.True(t, ok)
	assert.True(t, note.HasSummary())
}

func TestChatWithNotes(t *testing.T) {
	h := newHarness(t)
	userId := h.login(t)
	h.backend.SeedNote(userId, "a", "b")

	answer, err := h.notes.ChatWithNotes(ctx(t), "how many?")
	require.NoError(t, err)
	assert.Equal(t, "You have 1 notes.", answer)
}

func TestLogoutIsLocal(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	before := len(h.backend.Requests())

	require.NoError(t, h.auth.Logout(ctx(t)))

	assert.False(t, h.guard.IsAuthenticated())
	assert.Len(t, h.backend.Requests(), before)
	_, found, _ := h.store.Load(context.Background(), session.StorageKey)
	assert.False(t, found)
}

func TestLogoutClearsEvenWhenEngineClosed(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.engine.Close()

	err := h.auth.Logout(ctx(t))
	assert.ErrorIs(t, err, cache.ErrEngineClosed)
	assert.False(t, h.guard.IsAuthenticated())
}

func TestProfileFollowsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	sub, err := h.auth.Profile(ctx(t))
	require.NoError(t, err)
	defer sub.Unsubscribe()

	id, err := sub.Wait(ctx(t))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada Lovelace", id.FullName)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	res, err := h.auth.Register(ctx(t), &dto.RegisterRequest{Name: "Grace", Email: "grace@example.com", Password: "hopper1"})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", res.Email)
	assert.False(t, h.guard.IsAuthenticated(), "registering does not log in")

	_, err = h.auth.Register(ctx(t), &dto.RegisterRequest{Name: "Grace", Email: "grace@example.com", Password: "hopper1"})
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "unique", appErr.Details["email"])
}

func TestQuizRoundTrip(t *testing.T) {
	h := newHarness(t)
	userId := h.login(t)
	noteId := h.backend.SeedNote(userId, "Go", "channels")

	quiz, err := h.quiz.Generate(ctx(t), noteId)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 3)
	assert.Equal(t, noteId, quiz.NoteId)

	result, err := h.quiz.Submit(ctx(t), quiz.Id, map[string]string{"q1": "B", "q2": "A"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.PerQuestion, 3)
	assert.Equal(t, "Skipped", result.PerQuestion[2].DisplayAnswer())
	assert.Len(t, result.Mistakes(), 2)

	reply, err := h.quiz.AskTutor(ctx(t), quiz.Id, "why B?")
	require.NoError(t, err)
	assert.Equal(t, "Tutor: why B?", reply)
}
