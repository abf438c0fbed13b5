package dto

type GenerateQuizRequest struct {
	NoteId string `json:"noteId,omitempty"`
}

type QuestionResponse struct {
	Id           string   `json:"id"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
}

type QuizResponse struct {
	Id        string             `json:"id"`
	Title     string             `json:"title"`
	NoteId    string             `json:"noteId,omitempty"`
	Questions []QuestionResponse `json:"questions"`
}

type SubmitQuizRequest struct {
	QuizId  string            `json:"quizId" validate:"required"`
	Answers map[string]string `json:"answers" validate:"required"`
}

type QuestionResultResponse struct {
	Id            string `json:"id"`
	QuestionText  string `json:"questionText"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

type SubmitQuizResponse struct {
	Score int `json:"score"`
	Total int `json:"total"`
	Data  struct {
		Questions []QuestionResultResponse `json:"questions"`
	} `json:"data"`
}

type QuizChatRequest struct {
	QuizId   string `json:"quizId" validate:"required"`
	Question string `json:"question" validate:"required"`
}
