// Package history merges a player's mission, achievement, prize and quiz
// completions into display rows.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// quizResultConcurrency bounds the per-quiz result fetches
const quizResultConcurrency = 4

// Aggregator loads player histories
type Aggregator struct {
	client   *upstream.Client
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewAggregator creates a history aggregator
func NewAggregator(client *upstream.Client, notifier notify.Notifier, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		client:   client,
		notifier: notifier,
		logger:   logger,
	}
}

type fetchFunc func(ctx context.Context, creds domain.Credentials, ref string) ([]domain.HistoryRow, error)

// Load runs the four resource fetches concurrently and returns whatever
// succeeded. Each failed resource is notified once and listed in
// History.Errors. Nothing is notified once ctx is cancelled.
func (a *Aggregator) Load(ctx context.Context, creds domain.Credentials, ref string) domain.History {
	h := domain.History{
		PlayerRef:    ref,
		Missions:     []domain.HistoryRow{},
		Achievements: []domain.HistoryRow{},
		Prizes:       []domain.HistoryRow{},
		Quizzes:      []domain.HistoryRow{},
	}

	fetches := map[string]fetchFunc{
		domain.ResourceMissions:     a.actions(a.client.PlayerMissions, domain.ResourceMissions),
		domain.ResourceAchievements: a.actions(a.client.PlayerAchievements, domain.ResourceAchievements),
		domain.ResourcePrizes:       a.actions(a.client.PlayerPrizes, domain.ResourcePrizes),
		domain.ResourceQuizzes:      a.quizzes,
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for resource, fetch := range fetches {
		wg.Add(1)
		go func(resource string, fetch fetchFunc) {
			defer wg.Done()
			rows, err := fetch(ctx, creds, ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if h.Errors == nil {
					h.Errors = make(map[string]string)
				}
				h.Errors[resource] = domain.UserMessage(err)
			}
			if rows == nil {
				return
			}
			switch resource {
			case domain.ResourceMissions:
				h.Missions = rows
			case domain.ResourceAchievements:
				h.Achievements = rows
			case domain.ResourcePrizes:
				h.Prizes = rows
			case domain.ResourceQuizzes:
				h.Quizzes = rows
			}
		}(resource, fetch)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return h
	}
	for _, resource := range []string{
		domain.ResourceMissions,
		domain.ResourceAchievements,
		domain.ResourcePrizes,
		domain.ResourceQuizzes,
	} {
		if msg, failed := h.Errors[resource]; failed {
			a.logger.Warn("history fetch failed", "player_ref", ref, "resource", resource, "error", msg)
			a.notifier.Notify(notify.KindError, fmt.Sprintf("Failed to load %s: %s", resource, msg))
		}
	}
	return h
}

func (a *Aggregator) actions(
	get func(context.Context, domain.Credentials, string) ([]byte, error),
	resource string,
) fetchFunc {
	return func(ctx context.Context, creds domain.Credentials, ref string) ([]domain.HistoryRow, error) {
		raw, err := get(ctx, creds, ref)
		if err != nil {
			return nil, err
		}
		return normalize.HistoryRows(raw, resource), nil
	}
}

// quizzes lists the account's quizzes, then fetches the player's result for
// each one. Quizzes without completion actions are omitted.
func (a *Aggregator) quizzes(ctx context.Context, creds domain.Credentials, ref string) ([]domain.HistoryRow, error) {
	raw, err := a.client.ListQuizzes(ctx, creds)
	if err != nil {
		return nil, err
	}
	quizzes := normalize.Quizzes(raw)

	results := make([]*domain.QuizResult, len(quizzes))
	errs := make([]error, len(quizzes))
	sem := make(chan struct{}, quizResultConcurrency)

	var wg sync.WaitGroup
	for i, quiz := range quizzes {
		if quiz.ID == "" {
			continue
		}
		wg.Add(1)
		go func(i int, quiz domain.Quiz) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			raw, err := a.client.QuizResult(ctx, creds, quiz.ID, ref)
			if err != nil {
				if !domain.IsNotFoundError(err) {
					errs[i] = err
				}
				return
			}
			result := normalize.QuizResult(raw, quiz.ID)
			results[i] = &result
		}(i, quiz)
	}
	wg.Wait()

	rows := []domain.HistoryRow{}
	var firstErr error
	for i, quiz := range quizzes {
		if errs[i] != nil {
			a.logger.Debug("quiz result failed", "player_ref", ref, "quiz_id", quiz.ID, "error", errs[i])
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		result := results[i]
		if result == nil || result.Actions == 0 {
			continue
		}
		status := result.Status
		if status == "" {
			status = normalize.StatusCompleted
		}
		rows = append(rows, domain.HistoryRow{
			ID:      quiz.ID,
			Name:    quiz.Name,
			Count:   result.Actions,
			FirstAt: result.FirstAt,
			LastAt:  result.LastAt,
			Status:  status,
		})
	}

	// Rows already fetched are kept; the failure is still reported.
	if firstErr != nil {
		return rows, fmt.Errorf("fetching quiz results: %w", firstErr)
	}
	return rows, nil
}
