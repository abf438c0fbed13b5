package service

import (
	"context"
	"net/http"
	"strings"

	"brainsync-client/internal/api"
	"brainsync-client/internal/apperr"
	"brainsync-client/internal/cache"
	"brainsync-client/internal/dto"
	"brainsync-client/internal/entity"
	"brainsync-client/internal/mapper"
	"brainsync-client/internal/pkg/validation"
)

type IQuizService interface {
	Generate(ctx context.Context, noteId string) (*entity.Quiz, error)
	Submit(ctx context.Context, quizId string, answers map[string]string) (*entity.ScoreResult, error)
	AskTutor(ctx context.Context, quizId, question string) (string, error)
}

type quizService struct {
	engine *cache.Engine
	gate   AuthGate
	mapper *mapper.QuizMapper

	generateQuiz    cache.MutationDef[dto.GenerateQuizRequest, *entity.Quiz]
	submitQuiz      cache.MutationDef[dto.SubmitQuizRequest, *entity.ScoreResult]
	chatQuizMistake cache.MutationDef[dto.QuizChatRequest, string]
}

func NewQuizService(engine *cache.Engine, client *api.Client, gate AuthGate) IQuizService {
	s := &quizService{
		engine: engine,
		gate:   gate,
		mapper: mapper.NewQuizMapper(),
	}

	s.generateQuiz = cache.MutationDef[dto.GenerateQuizRequest, *entity.Quiz]{
		Name: "generateQuiz",
		Run: func(ctx context.Context, req dto.GenerateQuizRequest) (*entity.Quiz, error) {
			var res dto.QuizResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/quiz/generate", Body: req}, &res); err != nil {
				return nil, err
			}
			return s.mapper.ToEntity(&res), nil
		},
	}

	s.submitQuiz = cache.MutationDef[dto.SubmitQuizRequest, *entity.ScoreResult]{
		Name: "submitQuiz",
		Run: func(ctx context.Context, req dto.SubmitQuizRequest) (*entity.ScoreResult, error) {
			var res dto.SubmitQuizResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/quiz/submit", Body: req}, &res); err != nil {
				return nil, err
			}
			return s.mapper.ToScoreResult(&res), nil
		},
	}

	s.chatQuizMistake = cache.MutationDef[dto.QuizChatRequest, string]{
		Name: "chatQuizMistake",
		Run: func(ctx context.Context, req dto.QuizChatRequest) (string, error) {
			var res dto.ChatAnswerResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/quiz/chat", Body: req}, &res); err != nil {
				return "", err
			}
			return res.Answer, nil
		},
	}

	return s
}

// Generate asks for a quiz over noteId, or over all notes when noteId is empty.
func (s *quizService) Generate(ctx context.Context, noteId string) (*entity.Quiz, error) {
	if err := s.gate.RequireAuth(); err != nil {
		return nil, err
	}
	quiz, err := cache.Mutate(ctx, s.engine, s.generateQuiz, dto.GenerateQuizRequest{NoteId: strings.TrimSpace(noteId)})
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, apperr.NewServer(http.StatusOK, "generated quiz has no questions")
	}
	return quiz, nil
}

func (s *quizService) Submit(ctx context.Context, quizId string, answers map[string]string) (*entity.ScoreResult, error) {
	if err := s.gate.RequireAuth(); err != nil {
		return nil, err
	}
	req := dto.SubmitQuizRequest{QuizId: quizId, Answers: answers}
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}
	return cache.Mutate(ctx, s.engine, s.submitQuiz, req)
}

func (s *quizService) AskTutor(ctx context.Context, quizId, question string) (string, error) {
	if err := s.gate.RequireAuth(); err != nil {
		return "", err
	}
	req := dto.QuizChatRequest{QuizId: quizId, Question: strings.TrimSpace(question)}
	if err := validation.ValidateRequest(req); err != nil {
		return "", err
	}
	return cache.Mutate(ctx, s.engine, s.chatQuizMistake, req)
}
