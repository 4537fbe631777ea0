package domain

import "time"

// Quiz is a catalog quiz
type Quiz struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Choice is one selectable answer
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Question is a single-choice quiz question
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices"`
}

// AnswerEntry is the submission shape for one question
type AnswerEntry struct {
	QuestionID string   `json:"questionId"`
	AnswerIDs  []string `json:"answerIds"`
}

// QuizResult is a player's recorded outcome for one quiz
type QuizResult struct {
	QuizID  string     `json:"quiz_id"`
	Actions int        `json:"actions"`
	FirstAt *time.Time `json:"first_at,omitempty"`
	LastAt  *time.Time `json:"last_at,omitempty"`
	Status  string     `json:"status,omitempty"`
}

// QuizFeedback is the interpreted response to a submission
type QuizFeedback struct {
	Passed  bool   `json:"passed"`
	Failed  bool   `json:"failed"`
	Message string `json:"message"`
}
