package entity

type Question struct {
	Id           string
	QuestionText string
	Options      []string
}

func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

type Quiz struct {
	Id        string
	Title     string
	NoteId    string
	Questions []Question
}

type QuestionResult struct {
	Id            string
	QuestionText  string
	UserAnswer    string
	CorrectAnswer string
	IsCorrect     bool
}

// DisplayAnswer is what the review screen shows for the user's pick.
func (r QuestionResult) DisplayAnswer() string {
	if r.UserAnswer == "" {
		return "Skipped"
	}
	return r.UserAnswer
}

// ScoreResult is returned atomically by the submit call and never mutated afterwards.
type ScoreResult struct {
	Score       int
	Total       int
	PerQuestion []QuestionResult
}

func (r ScoreResult) Mistakes() []QuestionResult {
	var wrong []QuestionResult
	for _, q := range r.PerQuestion {
		if !q.IsCorrect {
			wrong = append(wrong, q)
		}
	}
	return wrong
}
