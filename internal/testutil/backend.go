// Package testutil runs an in-process BrainSync backend for tests: the REST API under
// /api/v1 and the websocket push channel under /api/v1/ws.
package testutil

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"brainsync-client/internal/dto"
	"brainsync-client/internal/pkg/logger"
	"brainsync-client/internal/pkg/serverutils"
	internalWS "brainsync-client/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	apiPrefix       = "/api/v1"
	defaultTokenTTL = time.Hour
)

type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
}

type user struct {
	Id           string
	Name         string
	Email        string
	PasswordHash []byte
}

type storedQuiz struct {
	quiz    dto.QuizResponse
	correct map[string]string
}

type Backend struct {
	URL    string
	WSURL  string
	Secret []byte

	app *fiber.App
	hub *internalWS.Hub

	mu         sync.Mutex
	users      map[string]*user
	notes      map[string][]*dto.NoteResponse
	quizzes    map[string]*storedQuiz
	tokenGen   int
	failNext   map[string][]int
	delays     map[string]time.Duration
	chatAnswer *string
	requests   []RecordedRequest
	nextId     int
}

// NewBackend starts the backend on a loopback port and stops it when t ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		Secret:   []byte("brainsync-test-secret"),
		hub:      internalWS.NewHub(logger.NewNopLogger()),
		users:    make(map[string]*user),
		notes:    make(map[string][]*dto.NoteResponse),
		quizzes:  make(map[string]*storedQuiz),
		failNext: make(map[string][]int),
		delays:   make(map[string]time.Duration),
	}

	b.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	b.registerRoutes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go b.hub.Run()
	go func() { _ = b.app.Listener(ln) }()

	addr := ln.Addr().String()
	b.URL = "http://" + addr + apiPrefix
	b.WSURL = "ws://" + addr + apiPrefix + "/ws"

	t.Cleanup(func() {
		b.hub.Stop()
		_ = b.app.Shutdown()
	})
	return b
}

// AddUser registers a user directly and returns its id.
func (b *Backend) AddUser(name, email, password string) string {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)

	b.mu.Lock()
	defer b.mu.Unlock()
	u := &user{Id: b.newIdLocked("user"), Name: name, Email: email, PasswordHash: hash}
	b.users[email] = u
	return u.Id
}

// IssueToken mints a token for a registered user without going through login.
func (b *Backend) IssueToken(email string, ttl time.Duration) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	if !ok {
		return ""
	}
	return b.signLocked(u, ttl)
}

// RevokeTokens makes every token issued so far answer 401.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	b.tokenGen++
	b.mu.Unlock()
}

// FailNext makes the next call to method+path answer status instead of being handled.
func (b *Backend) FailNext(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := method + " " + path
	b.failNext[k] = append(b.failNext[k], status)
}

func (b *Backend) Delay(method, path string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[method+" "+path] = d
}

func (b *Backend) SetChatAnswer(answer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatAnswer = &answer
}

func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

func (b *Backend) CountRequests(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// SeedNote stores a note for userId without emitting any push event.
func (b *Backend) SeedNote(userId, title, content string, tags ...string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.newNoteLocked(title, content, tags)
	b.notes[userId] = append([]*dto.NoteResponse{n}, b.notes[userId]...)
	return n.Id
}

func (b *Backend) Connections(userId string) int {
	return b.hub.ClientCount(userId)
}

// PushNoteEvent sends a notification frame the way the production hub does.
func (b *Backend) PushNoteEvent(userId, typeCode, noteId, title string) {
	frame, _ := jsonMarshal(fiber.Map{
		"type": "notification",
		"data": fiber.Map{
			"type_code":   typeCode,
			"entity_type": "NOTE",
			"entity_id":   noteId,
			"title":       title,
			"message":     fmt.Sprintf("Note %q changed", title),
		},
	})
	b.hub.Send(userId, frame)
}

func (b *Backend) PushRaw(userId string, frame []byte) {
	b.hub.Send(userId, frame)
}

func (b *Backend) registerRoutes() {
	api := b.app.Group(apiPrefix, b.recordAndInject)

	api.Post("/users/register", b.register)
	api.Post("/users/login", b.login)
	api.Get("/ws", b.serveWs)

	auth := serverutils.JwtMiddleware(b.Secret, b.checkGeneration)
	api.Get("/notes", auth, b.listNotes)
	api.Post("/notes/chat", auth, b.chatWithNotes)
	api.Post("/notes", auth, b.createNote)
	api.Patch("/notes/:id", auth, b.updateNote)
	api.Delete("/notes/:id", auth, b.deleteNote)
	api.Post("/notes/:id/summary", auth, b.generateSummary)
	api.Post("/quiz/generate", auth, b.generateQuiz)
	api.Post("/quiz/submit", auth, b.submitQuiz)
	api.Post("/quiz/chat", auth, b.quizChat)
}

func (b *Backend) recordAndInject(ctx *fiber.Ctx) error {
	// Fiber reuses request buffers: copy before storing.
	method := strings.Clone(ctx.Method())
	path := strings.Clone(strings.TrimPrefix(ctx.Path(), apiPrefix))
	key := method + " " + path

	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method:        method,
		Path:          path,
		Authorization: strings.Clone(ctx.Get("Authorization")),
	})
	delay := b.delays[key]
	status := 0
	if queued := b.failNext[key]; len(queued) > 0 {
		status = queued[0]
		b.failNext[key] = queued[1:]
	}
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		return ctx.Status(status).JSON(serverutils.ErrorResponse(status, "injected failure"))
	}
	return ctx.Next()
}

func (b *Backend) checkGeneration(claims jwt.MapClaims) error {
	gen, _ := claims["gen"].(float64)
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(gen) != b.tokenGen {
		return errors.New("token revoked")
	}
	return nil
}

func (b *Backend) signLocked(u *user, ttl time.Duration) string {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   u.Id,
		"email":     u.Email,
		"full_name": u.Name,
		"role":      "user",
		"gen":       b.tokenGen,
		"exp":       time.Now().Add(ttl).Unix(),
	}).SignedString(b.Secret)
	return token
}

func (b *Backend) newIdLocked(prefix string) string {
	b.nextId++
	return fmt.Sprintf("%s-%d", prefix, b.nextId)
}

func (b *Backend) newNoteLocked(title, content string, tags []string) *dto.NoteResponse {
	n := &dto.NoteResponse{
		Id:        b.newIdLocked("note"),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now(),
	}
	n.Tags = toTags(tags)
	return n
}

func toTags(names []string) []dto.TagResponse {
	tags := make([]dto.TagResponse, 0, len(names))
	for _, name := range names {
		tags = append(tags, dto.TagResponse{Id: "tag-" + strings.ToLower(name), Name: name})
	}
	return tags
}

func (b *Backend) serveWs(c *fiber.Ctx) error {
	tokenStr := serverutils.BearerToken(c)
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	claims, err := serverutils.ParseToken(tokenStr, b.Secret, b.checkGeneration)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(b.hub, conn, userID)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
