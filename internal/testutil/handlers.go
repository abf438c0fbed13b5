package testutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"brainsync-client/internal/dto"
	"brainsync-client/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func userIdOf(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals("user_id").(string)
	return id
}

func (b *Backend) register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid body"))
	}

	b.mu.Lock()
	_, exists := b.users[req.Email]
	b.mu.Unlock()
	if exists {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ValidationErrorResponse("email already registered", map[string]string{"email": "unique"}))
	}

	id := b.AddUser(req.Name, req.Email, req.Password)
	return ctx.JSON(serverutils.SuccessResponse("Success register", dto.RegisterResponse{Id: id, Name: req.Name, Email: req.Email}))
}

func (b *Backend) login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid body"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[req.Email]
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid email or password"))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success login", dto.LoginResponse{AccessToken: b.signLocked(u, defaultTokenTTL)}))
}

func (b *Backend) listNotes(ctx *fiber.Ctx) error {
	page := ctx.QueryInt("page", 1)
	limit := ctx.QueryInt("limit", 10)
	if page < 1 || limit < 1 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid pagination"))
	}

	b.mu.Lock()
	all := b.notes[userIdOf(ctx)]
	start := (page - 1) * limit
	items := []dto.NoteResponse{}
	for i := start; i < len(all) && i < start+limit; i++ {
		items = append(items, *all[i])
	}
	total := len(all)
	b.mu.Unlock()

	return ctx.JSON(serverutils.SuccessResponse("Success get notes", dto.GetNotesResponse{
		Notes: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}))
}

func (b *Backend) createNote(ctx *fiber.Ctx) error {
	var req dto.CreateNoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid body"))
	}
	if strings.TrimSpace(req.Title) == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ValidationErrorResponse("validation failed", map[string]string{"title": "required"}))
	}

	userId := userIdOf(ctx)
	b.mu.Lock()
	n := b.newNoteLocked(req.Title, req.Content, req.Tags)
	b.notes[userId] = append([]*dto.NoteResponse{n}, b.notes[userId]...)
	res := *n
	b.mu.Unlock()

	b.PushNoteEvent(userId, "NOTE_CREATED", res.Id, res.Title)
	return ctx.JSON(serverutils.SuccessResponse("Success create note", res))
}

func (b *Backend) findLocked(userId, noteId string) (int, *dto.NoteResponse) {
	for i, n := range b.notes[userId] {
		if n.Id == noteId {
			return i, n
		}
	}
	return -1, nil
}

func (b *Backend) updateNote(ctx *fiber.Ctx) error {
	var req dto.UpdateNoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid body"))
	}

	userId := userIdOf(ctx)
	b.mu.Lock()
	_, n := b.findLocked(userId, ctx.Params("id"))
	if n == nil {
		b.mu.Unlock()
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "note not found"))
	}
	if req.Title != nil {
		n.Title = *req.Title
	}
	if req.Content != nil {
		n.Content = *req.Content
	}
	if req.Tags != nil {
		n.Tags = toTags(req.Tags)
	}
	res := *n
	b.mu.Unlock()

	b.PushNoteEvent(userId, "NOTE_UPDATED", res.Id, res.Title)
	return ctx.JSON(serverutils.SuccessResponse("Success update note", res))
}

func (b *Backend) deleteNote(ctx *fiber.Ctx) error {
	userId := userIdOf(ctx)
	b.mu.Lock()
	i, n := b.findLocked(userId, ctx.Params("id"))
	if n == nil {
		b.mu.Unlock()
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "note not found"))
	}
	notes := b.notes[userId]
	b.notes[userId] = append(notes[:i:i], notes[i+1:]...)
	b.mu.Unlock()

	b.PushNoteEvent(userId, "NOTE_DELETED", n.Id, n.Title)
	return ctx.JSON(serverutils.SuccessResponse("Success delete note", dto.DeleteNoteResponse{Id: n.Id}))
}

func (b *Backend) generateSummary(ctx *fiber.Ctx) error {
	userId := userIdOf(ctx)
	b.mu.Lock()
	_, n := b.findLocked(userId, ctx.Params("id"))
	if n == nil {
		b.mu.Unlock()
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "note not found"))
	}
	summary := "Summary of " + n.Title
	n.AiSummary = &summary
	b.mu.Unlock()

	return ctx.JSON(serverutils.SuccessResponse("Success generate summary", dto.GenerateSummaryResponse{Id: n.Id, AiSummary: summary}))
}

func (b *Backend) chatWithNotes(ctx *fiber.Ctx) error {
	var req dto.ChatWithNotesRequest
	if err := ctx.BodyParser(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "question is required"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	answer := fmt.Sprintf("You have %d notes.", len(b.notes[userIdOf(ctx)]))
	if b.chatAnswer != nil {
		answer = *b.chatAnswer
	}
	return ctx.JSON(dto.ChatAnswerResponse{Answer: answer})
}

func (b *Backend) generateQuiz(ctx *fiber.Ctx) error {
	var req dto.GenerateQuizRequest
	_ = ctx.BodyParser(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	q := &storedQuiz{correct: make(map[string]string)}
	q.quiz = dto.QuizResponse{Id: b.newIdLocked("quiz"), Title: "Practice quiz", NoteId: req.NoteId}
	for i := 1; i <= 3; i++ {
		qid := fmt.Sprintf("q%d", i)
		q.quiz.Questions = append(q.quiz.Questions, dto.QuestionResponse{
			Id:           qid,
			QuestionText: fmt.Sprintf("Question %d?", i),
			Options:      []string{"A", "B", "C"},
		})
		q.correct[qid] = "B"
	}
	b.quizzes[q.quiz.Id] = q

	return ctx.JSON(serverutils.SuccessResponse("Success generate quiz", q.quiz))
}

// submitQuiz answers with a bare body, the way the quiz routes always have.
func (b *Backend) submitQuiz(ctx *fiber.Ctx) error {
	var req dto.SubmitQuizRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid body"))
	}

	b.mu.Lock()
	q, ok := b.quizzes[req.QuizId]
	b.mu.Unlock()
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "quiz not found"))
	}

	var res dto.SubmitQuizResponse
	res.Total = len(q.quiz.Questions)
	for _, question := range q.quiz.Questions {
		answer := req.Answers[question.Id]
		correct := answer == q.correct[question.Id]
		if correct {
			res.Score++
		}
		res.Data.Questions = append(res.Data.Questions, dto.QuestionResultResponse{
			Id:            question.Id,
			QuestionText:  question.QuestionText,
			UserAnswer:    answer,
			CorrectAnswer: q.correct[question.Id],
			IsCorrect:     correct,
		})
	}
	return ctx.JSON(res)
}

func (b *Backend) quizChat(ctx *fiber.Ctx) error {
	var req dto.QuizChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid body"))
	}
	return ctx.JSON(dto.ChatAnswerResponse{Answer: "Tutor: " + req.Question})
}
