package console

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/quiz"
)

// ActionSink receives an audit record for every mutating action that
// reached the upstream API or the credential backend
type ActionSink interface {
	RecordAction(ctx context.Context, rec domain.ActionRecord) error
}

// Sinks fans a record out to every sink
type Sinks []ActionSink

// RecordAction forwards rec to each sink and joins their errors
func (s Sinks) RecordAction(ctx context.Context, rec domain.ActionRecord) error {
	var errs []error
	for _, sink := range s {
		if err := sink.RecordAction(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// local reports errors raised before any request was sent
func local(err error) bool {
	return errors.Is(err, domain.ErrMissingCredentials) ||
		errors.Is(err, domain.ErrCredentialsNotStored) ||
		errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrIncompleteAnswers) ||
		errors.Is(err, domain.ErrNoPlayerSelected)
}

func (c *Console) record(ctx context.Context, kind domain.ActionKind, account, ref, target string, err error) {
	if c.sink == nil || (err != nil && local(err)) {
		return
	}
	rec := domain.ActionRecord{
		ID:        uuid.NewString(),
		Account:   account,
		PlayerRef: ref,
		Kind:      kind,
		TargetID:  target,
		Succeeded: err == nil,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		rec.Message = domain.UserMessage(err)
	}
	if err := c.sink.RecordAction(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("failed to record action", "kind", kind, "player_ref", ref, "error", err)
	}
}

// StoreCredentials persists creds, verifying the write, and reloads the
// directory on success
func (c *Console) StoreCredentials(ctx context.Context, creds domain.Credentials) error {
	err := c.store.Set(ctx, creds)
	c.record(ctx, domain.ActionCredentialsStored, creds.Account, "", "", err)
	if err != nil {
		c.logger.Warn("storing credentials failed", "account", creds.Account, "error", err)
		c.notifier.Notify(notify.KindError, "Failed to store credentials: "+domain.UserMessage(err))
		return err
	}
	c.notifier.Notify(notify.KindSuccess, "Credentials stored")
	c.LoadDirectory(ctx)
	return nil
}

// EditCredentials changes the in-memory credentials without persisting them
func (c *Console) EditCredentials(creds domain.Credentials) {
	c.store.Edit(creds)
}

// CreatePlayer creates a player through the directory
func (c *Console) CreatePlayer(ctx context.Context, input domain.NewPlayer) (domain.Player, error) {
	p, err := c.directory.CreatePlayer(ctx, input)
	ref := p.PlayerRef
	if ref == "" {
		ref = input.ID
	}
	c.record(ctx, domain.ActionPlayerCreated, c.store.Get().Account, ref, input.ID, err)
	return p, err
}

// ClaimPrize claims a prize for the selected player
func (c *Console) ClaimPrize(ctx context.Context, prizeID string) error {
	sel := c.current()
	creds := c.store.Get()
	if !creds.Complete() {
		return domain.ErrMissingCredentials
	}
	err := c.boards.Prizes.Claim(ctx, creds, prizeID, sel.ref)
	c.record(ctx, domain.ActionPrizeClaimed, creds.Account, sel.ref, prizeID, err)
	return err
}

// CompleteEvent completes an event for the selected player
func (c *Console) CompleteEvent(ctx context.Context, eventID string) error {
	sel := c.current()
	creds := c.store.Get()
	if !creds.Complete() {
		return domain.ErrMissingCredentials
	}
	err := c.boards.Events.Complete(ctx, creds, eventID, sel.ref)
	c.record(ctx, domain.ActionEventCompleted, creds.Account, sel.ref, eventID, err)
	return err
}

// StartQuiz opens a quiz attempt for the selected player
func (c *Console) StartQuiz(ctx context.Context, quizID string) error {
	ref := c.Selected()
	if ref == "" {
		return domain.ErrNoPlayerSelected
	}
	return c.quiz.Start(ctx, c.store.Get(), quizID, ref)
}

// AnswerQuiz records an answer in the running quiz
func (c *Console) AnswerQuiz(questionID, choiceID string) error {
	return c.quiz.Answer(questionID, choiceID)
}

// NextQuestion advances the running quiz
func (c *Console) NextQuestion() error {
	return c.quiz.Next()
}

// PreviousQuestion steps the running quiz back
func (c *Console) PreviousQuestion() error {
	return c.quiz.Previous()
}

// SubmitQuiz submits the running quiz for the player it was started for
func (c *Console) SubmitQuiz(ctx context.Context) (domain.QuizFeedback, error) {
	view := c.quiz.View()
	creds := c.store.Get()
	feedback, err := c.quiz.Submit(ctx, creds, view.PlayerRef)
	c.record(ctx, domain.ActionQuizSubmitted, creds.Account, view.PlayerRef, view.QuizID, err)
	return feedback, err
}

// ResetQuiz abandons the running quiz
func (c *Console) ResetQuiz() {
	c.quiz.Reset()
}

// Quiz returns the quiz read model
func (c *Console) Quiz() quiz.View {
	return c.quiz.View()
}
