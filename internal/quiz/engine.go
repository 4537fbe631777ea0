// Package quiz runs one quiz attempt at a time: start, answer paginated
// single-choice questions, validate completeness and submit.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// State is a quiz session state
type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
)

// CompletedFunc runs after a successful submission, before the engine
// returns to idle
type CompletedFunc func(ctx context.Context, playerRef string, feedback domain.QuizFeedback)

type session struct {
	id        string
	quizID    string
	playerRef string
	questions []domain.Question
	index     int
	answers   map[string]string
}

// View is a read model of the engine
type View struct {
	State     State                `json:"state"`
	SessionID string               `json:"session_id,omitempty"`
	QuizID    string               `json:"quiz_id,omitempty"`
	PlayerRef string               `json:"player_ref,omitempty"`
	Questions []domain.Question    `json:"questions,omitempty"`
	Index     int                  `json:"index"`
	Current   *domain.Question     `json:"current,omitempty"`
	Answers   map[string]string    `json:"answers,omitempty"`
	Feedback  *domain.QuizFeedback `json:"feedback,omitempty"`
}

// Engine is the quiz session state machine
type Engine struct {
	client      *upstream.Client
	notifier    notify.Notifier
	logger      *slog.Logger
	onCompleted CompletedFunc

	mu       sync.Mutex
	state    State
	epoch    uint64
	session  *session
	feedback *domain.QuizFeedback
}

// NewEngine creates an idle quiz engine
func NewEngine(client *upstream.Client, notifier notify.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		client:   client,
		notifier: notifier,
		logger:   logger,
		state:    StateIdle,
	}
}

// OnCompleted sets the hook run after each successful submission
func (e *Engine) OnCompleted(fn CompletedFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCompleted = fn
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start opens a quiz attempt. On failure the engine is back to idle with no
// session.
func (e *Engine) Start(ctx context.Context, creds domain.Credentials, quizID, playerRef string) error {
	if quizID == "" || playerRef == "" {
		return fmt.Errorf("%w: quiz and player are required", domain.ErrInvalidRequest)
	}

	e.mu.Lock()
	if e.state != StateIdle {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot start a quiz while %s", domain.ErrInvalidState, state)
	}
	e.state = StateStarting
	e.epoch++
	epoch := e.epoch
	e.session = nil
	e.feedback = nil
	e.mu.Unlock()

	questions, err := e.open(ctx, creds, quizID, playerRef)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return fmt.Errorf("%w: quiz session was reset", domain.ErrInvalidState)
	}
	if err != nil {
		e.state = StateIdle
		e.logger.Warn("quiz start failed", "quiz_id", quizID, "player_ref", playerRef, "error", err)
		e.notifier.Notify(notify.KindError, "Failed to start quiz: "+domain.UserMessage(err))
		return err
	}

	e.session = &session{
		id:        uuid.NewString(),
		quizID:    quizID,
		playerRef: playerRef,
		questions: questions,
		answers:   make(map[string]string),
	}
	e.state = StateInProgress
	e.logger.Info("quiz started",
		"session_id", e.session.id,
		"quiz_id", quizID,
		"player_ref", playerRef,
		"questions", len(questions),
	)
	return nil
}

// open issues the start call and resolves the questions, falling back to
// the quiz definition when the start response carries none.
func (e *Engine) open(ctx context.Context, creds domain.Credentials, quizID, playerRef string) ([]domain.Question, error) {
	raw, err := e.client.StartQuiz(ctx, creds, quizID, playerRef)
	if err != nil {
		return nil, fmt.Errorf("starting quiz: %w", err)
	}
	questions := normalize.Questions(raw)
	if len(questions) > 0 {
		return questions, nil
	}

	raw, err = e.client.GetQuiz(ctx, creds, quizID)
	if err != nil {
		return nil, fmt.Errorf("fetching quiz: %w", err)
	}
	questions = normalize.Questions(raw)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: quiz %s has no questions", domain.ErrInvalidState, quizID)
	}
	return questions, nil
}

// Answer records choiceID for questionID, replacing any earlier answer.
// The current index does not move.
func (e *Engine) Answer(questionID, choiceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInProgress("answer"); err != nil {
		return err
	}
	if choiceID == "" {
		return fmt.Errorf("%w: choice is required", domain.ErrInvalidRequest)
	}

	q, ok := e.session.question(questionID)
	if !ok {
		return fmt.Errorf("%w: unknown question %q", domain.ErrInvalidRequest, questionID)
	}
	if len(q.Choices) > 0 && !hasChoice(q, choiceID) {
		return fmt.Errorf("%w: unknown choice %q for question %q", domain.ErrInvalidRequest, choiceID, questionID)
	}
	e.session.answers[questionID] = choiceID
	return nil
}

// Next moves forward one question. The current question must be answered
// and the session must not already be on its last question.
func (e *Engine) Next() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInProgress("advance"); err != nil {
		return err
	}

	s := e.session
	if s.answers[s.questions[s.index].ID] == "" {
		return domain.ErrNoAnswer
	}
	if s.index >= len(s.questions)-1 {
		return fmt.Errorf("%w: already at the last question", domain.ErrInvalidState)
	}
	s.index++
	return nil
}

// Previous moves back one question, staying on the first.
func (e *Engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInProgress("go back"); err != nil {
		return err
	}
	if e.session.index > 0 {
		e.session.index--
	}
	return nil
}

// Submit sends every answer in one request. Unanswered questions fail with
// domain.ErrIncompleteAnswers before anything is sent. A transport failure
// returns the engine to in-progress with its answers intact. On success the
// completion hook runs and the engine resets to idle.
func (e *Engine) Submit(ctx context.Context, creds domain.Credentials, playerRef string) (domain.QuizFeedback, error) {
	e.mu.Lock()
	if err := e.requireInProgress("submit"); err != nil {
		e.mu.Unlock()
		return domain.QuizFeedback{}, err
	}
	s := e.session
	if playerRef == "" {
		playerRef = s.playerRef
	}
	answers, missing := s.entries()
	if missing > 0 {
		e.mu.Unlock()
		return domain.QuizFeedback{}, fmt.Errorf("%w: %d of %d questions unanswered",
			domain.ErrIncompleteAnswers, missing, len(s.questions))
	}
	e.state = StateSubmitting
	epoch := e.epoch
	quizID := s.quizID
	sessionID := s.id
	e.mu.Unlock()

	raw, err := e.client.CompleteQuiz(ctx, creds, quizID, playerRef, answers)

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return domain.QuizFeedback{}, fmt.Errorf("%w: quiz session was reset", domain.ErrInvalidState)
	}
	if err != nil {
		e.state = StateInProgress
		e.mu.Unlock()
		e.logger.Warn("quiz submission failed", "session_id", sessionID, "quiz_id", quizID, "error", err)
		e.notifier.Notify(notify.KindError, "Failed to submit quiz: "+domain.UserMessage(err))
		return domain.QuizFeedback{}, fmt.Errorf("submitting quiz: %w", err)
	}

	feedback := normalize.QuizFeedback(raw)
	e.state = StateCompleted
	e.feedback = &feedback
	hook := e.onCompleted
	e.mu.Unlock()

	e.logger.Info("quiz submitted",
		"session_id", sessionID,
		"quiz_id", quizID,
		"player_ref", playerRef,
		"failed", feedback.Failed,
	)
	kind := notify.KindSuccess
	if feedback.Failed {
		kind = notify.KindError
	}
	e.notifier.Notify(kind, feedback.Message)

	if hook != nil {
		hook(ctx, playerRef, feedback)
	}

	e.mu.Lock()
	if e.epoch == epoch {
		e.state = StateIdle
		e.session = nil
	}
	e.mu.Unlock()
	return feedback, nil
}

// Reset abandons any session. Pending start or submit results are dropped.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.state = StateIdle
	e.session = nil
	e.feedback = nil
}

// View returns a copy of the engine state
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{State: e.state}
	if e.feedback != nil {
		fb := *e.feedback
		v.Feedback = &fb
	}
	s := e.session
	if s == nil {
		return v
	}
	v.SessionID = s.id
	v.QuizID = s.quizID
	v.PlayerRef = s.playerRef
	v.Index = s.index
	v.Questions = append([]domain.Question(nil), s.questions...)
	v.Answers = make(map[string]string, len(s.answers))
	for k, a := range s.answers {
		v.Answers[k] = a
	}
	current := s.questions[s.index]
	v.Current = &current
	return v
}

func (e *Engine) requireInProgress(action string) error {
	if e.state != StateInProgress || e.session == nil {
		return fmt.Errorf("%w: cannot %s while %s", domain.ErrInvalidState, action, e.state)
	}
	return nil
}

func (s *session) question(id string) (domain.Question, bool) {
	for _, q := range s.questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

// entries builds the submission body, one single-element answerIds list per
// question, and counts the unanswered questions.
func (s *session) entries() ([]domain.AnswerEntry, int) {
	out := make([]domain.AnswerEntry, 0, len(s.questions))
	missing := 0
	for _, q := range s.questions {
		choice := s.answers[q.ID]
		if choice == "" {
			missing++
			continue
		}
		out = append(out, domain.AnswerEntry{QuestionID: q.ID, AnswerIDs: []string{choice}})
	}
	return out, missing
}

func hasChoice(q domain.Question, id string) bool {
	for _, c := range q.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}
