package mapper

import (
	"brainsync-client/internal/dto"
	"brainsync-client/internal/entity"
)

type QuizMapper struct{}

func NewQuizMapper() *QuizMapper {
	return &QuizMapper{}
}

func (m *QuizMapper) ToEntity(q *dto.QuizResponse) *entity.Quiz {
	if q == nil {
		return nil
	}

	questions := make([]entity.Question, 0, len(q.Questions))
	for _, qq := range q.Questions {
		questions = append(questions, entity.Question{
			Id:           qq.Id,
			QuestionText: qq.QuestionText,
			Options:      append([]string(nil), qq.Options...),
		})
	}

	return &entity.Quiz{
		Id:        q.Id,
		Title:     q.Title,
		NoteId:    q.NoteId,
		Questions: questions,
	}
}

func (m *QuizMapper) ToScoreResult(r *dto.SubmitQuizResponse) *entity.ScoreResult {
	if r == nil {
		return nil
	}

	perQuestion := make([]entity.QuestionResult, 0, len(r.Data.Questions))
	for _, q := range r.Data.Questions {
		perQuestion = append(perQuestion, entity.QuestionResult{
			Id:            q.Id,
			QuestionText:  q.QuestionText,
			UserAnswer:    q.UserAnswer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     q.IsCorrect,
		})
	}

	return &entity.ScoreResult{
		Score:       r.Score,
		Total:       r.Total,
		PerQuestion: perQuestion,
	}
}
