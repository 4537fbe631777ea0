package upstream

import (
	"context"
	"net/http"

	"github.com/player-console/internal/domain"
)

type playerBody struct {
	Player string `json:"player"`
}

type createPlayerBody struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

type completeQuizBody struct {
	Player  string               `json:"player"`
	Answers []domain.AnswerEntry `json:"answers"`
}

func (c *Client) get(ctx context.Context, creds domain.Credentials, path string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, creds, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, creds domain.Credentials, path string, body any) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodPost, path, creds, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ListPlayers returns the raw player list
func (c *Client) ListPlayers(ctx context.Context, creds domain.Credentials) ([]byte, error) {
	return c.get(ctx, creds, "/players")
}

// GetPlayer returns one raw player record
func (c *Client) GetPlayer(ctx context.Context, creds domain.Credentials, ref string) ([]byte, error) {
	return c.get(ctx, creds, "/players/"+segment(ref))
}

// CreatePlayer creates a player
func (c *Client) CreatePlayer(ctx context.Context, creds domain.Credentials, p domain.NewPlayer) ([]byte, error) {
	return c.post(ctx, creds, "/players", createPlayerBody{ID: p.ID, Name: p.Name, Image: p.Avatar})
}

// ListTeams returns the raw team list
func (c *Client) ListTeams(ctx context.Context, creds domain.Credentials) ([]byte, error) {
	return c.get(ctx, creds, "/teams")
}

// GetTeam returns one raw team
func (c *Client) GetTeam(ctx context.Context, creds domain.Credentials, id string) ([]byte, error) {
	return c.get(ctx, creds, "/teams/"+segment(id))
}

// ListEvents returns the raw event list
func (c *Client) ListEvents(ctx context.Context, creds domain.Credentials) ([]byte, error) {
	return c.get(ctx, creds, "/events")
}

// CompleteEvent records an event completion for a player
func (c *Client) CompleteEvent(ctx context.Context, creds domain.Credentials, eventID, ref string) ([]byte, error) {
	return c.post(ctx, creds, "/events/"+segment(eventID)+"/complete", playerBody{Player: ref})
}

// ListMissions returns the raw mission catalog
func (c *Client) ListMissions(ctx context.Context, creds domain.Credentials) ([]byte, error) {
	return c.get(ctx, creds, "/missions")
}

// PlayerMissions returns a player's mission records
func (c *Client) PlayerMissions(ctx context.Context, creds domain.Credentials, ref string) ([]byte, error) {
	return c.get(ctx, creds, "/players/"+segment(ref)+"/missions")
}

// ListAchievements returns the raw achievement catalog
func (c *Client) ListAchievements(ctx context.Context, creds domain.Credentials) ([]byte, error) {
	return c.get(ctx, creds, "/achievements")
}

// PlayerAchievements returns a player's achievement records
func (c *Client) PlayerAchievements(ctx context.Context, creds domain.Credentials, ref string) ([]byte, error) {
	return c.get(ctx, creds, "/players/"+segment(ref)+"/achievements")
}

// ListPrizes returns the raw prize catalog
func (c *Client) ListPrizes(ctx context.Context, creds domain.Credentials) ([]byte, error) {
	return c.get(ctx, creds, "/prizes")
}

// ClaimPrize claims a prize for a player
func (c *Client) ClaimPrize(ctx context.Context, creds domain.Credentials, prizeID, ref string) ([]byte, error) {
	return c.post(ctx, creds, "/prizes/"+segment(prizeID)+"/claim", playerBody{Player: ref})
}

// PlayerPrizes returns a player's prize records
func (c *Client) PlayerPrizes(ctx context.Context, creds domain.Credentials, ref string) ([]byte, error) {
	return c.get(ctx, creds, "/players/"+segment(ref)+"/prizes")
}

// GetStreak returns one streak definition
func (c *Client) GetStreak(ctx context.Context, creds domain.Credentials, id string) ([]byte, error) {
	return c.get(ctx, creds, "/streaks/"+segment(id))
}

// PlayerStreaks returns a player's streak progress
func (c *Client) PlayerStreaks(ctx context.Context, creds domain.Credentials, ref string) ([]byte, error) {
	return c.get(ctx, creds, "/players/"+segment(ref)+"/streaks")
}

// GetLeaderboard returns a leaderboard with its ranked entries
func (c *Client) GetLeaderboard(ctx context.Context, creds domain.Credentials, id string) ([]byte, error) {
	return c.get(ctx, creds, "/leaderboards/"+segment(id))
}

// ListQuizzes returns the raw quiz catalog
func (c *Client) ListQuizzes(ctx context.Context, creds domain.Credentials) ([]byte, error) {
	return c.get(ctx, creds, "/quizzes")
}

// GetQuiz returns one quiz definition
func (c *Client) GetQuiz(ctx context.Context, creds domain.Credentials, id string) ([]byte, error) {
	return c.get(ctx, creds, "/quizzes/"+segment(id))
}

// StartQuiz opens a quiz attempt for a player
func (c *Client) StartQuiz(ctx context.Context, creds domain.Credentials, quizID, ref string) ([]byte, error) {
	return c.post(ctx, creds, "/quizzes/"+segment(quizID)+"/start", playerBody{Player: ref})
}

// CompleteQuiz submits a player's answers
func (c *Client) CompleteQuiz(ctx context.Context, creds domain.Credentials, quizID, ref string, answers []domain.AnswerEntry) ([]byte, error) {
	return c.post(ctx, creds, "/quizzes/"+segment(quizID)+"/complete", completeQuizBody{Player: ref, Answers: answers})
}

// QuizResult returns a player's result for one quiz
func (c *Client) QuizResult(ctx context.Context, creds domain.Credentials, quizID, ref string) ([]byte, error) {
	return c.get(ctx, creds, "/quizzes/"+segment(quizID)+"/result/"+segment(ref))
}
