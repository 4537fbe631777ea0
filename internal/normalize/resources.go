package normalize

import (
	"strings"
	"time"

	"github.com/player-console/internal/domain"
)

// each decodes every object item of resource in raw, skipping non-objects
func each[T any](raw []byte, resource string, decode func(record) T) []T {
	items := List(raw, resource)
	out := make([]T, 0, len(items))
	for _, item := range items {
		rec, ok := toRecord(item)
		if !ok {
			continue
		}
		out = append(out, decode(rec))
	}
	return out
}

// Reward prefers the flattened points/credits fields and falls back to
// the nested reward object.
func rewardOf(rec record) domain.Reward {
	nested := rec.obj("reward")
	var reward domain.Reward
	if rec.has("points") {
		reward.Points = rec.integer("points")
	} else {
		reward.Points = nested.integer("points")
	}
	if rec.has("credits") {
		reward.Credits = rec.integer("credits")
	} else {
		reward.Credits = nested.integer("credits")
	}
	return reward
}

func idOf(rec record) string {
	return rec.str("id", "_id")
}

func nameOf(rec record) string {
	return rec.str("name", "title")
}

func teamOf(rec record) string {
	if team := rec.obj("team"); len(team) > 0 {
		return idOf(team)
	}
	return rec.str("team", "team_id", "teamId")
}

func player(rec record) domain.Player {
	return domain.Player{
		ID:        idOf(rec),
		Name:      nameOf(rec),
		PlayerRef: rec.str("player", "player_id", "playerId", "id", "_id"),
		AvatarURL: rec.str("image", "avatar", "avatar_url"),
		TeamID:    teamOf(rec),
	}
}

// Players decodes the player list
func Players(raw []byte) []domain.Player {
	return each(raw, "players", player)
}

// Teams decodes the team list
func Teams(raw []byte) []domain.Team {
	return each(raw, "teams", func(rec record) domain.Team {
		return domain.Team{ID: idOf(rec), Name: nameOf(rec)}
	})
}

// Team decodes a single team
func Team(raw []byte) domain.Team {
	rec := single(raw, "team")
	return domain.Team{ID: idOf(rec), Name: nameOf(rec)}
}

// TeamMap reduces teams into an id to name lookup
func TeamMap(teams []domain.Team) map[string]string {
	m := make(map[string]string, len(teams))
	for _, t := range teams {
		if t.ID == "" {
			continue
		}
		m[t.ID] = t.Name
	}
	return m
}

// CreatedPlayer reconciles the creation response with the submitted input.
// The ref comes from player_id when the response has one, otherwise the
// input id.
func CreatedPlayer(raw []byte, input domain.NewPlayer) domain.Player {
	rec := single(raw, "player")
	p := domain.Player{
		ID:        input.ID,
		Name:      input.Name,
		PlayerRef: rec.str("player_id"),
		AvatarURL: input.Avatar,
		TeamID:    teamOf(rec),
	}
	if p.PlayerRef == "" {
		p.PlayerRef = input.ID
	}
	if name := nameOf(rec); name != "" {
		p.Name = name
	}
	return p
}

// Profile decodes a player record into a profile with defaults for every
// optional field. TeamName is left for the caller to resolve.
func Profile(raw []byte, ref string) domain.PlayerProfile {
	rec := single(raw, "player")

	level := domain.Level{Name: domain.DefaultLevelName}
	if lvl := rec.obj("level"); len(lvl) > 0 {
		if name := nameOf(lvl); name != "" {
			level.Name = name
		}
		level.Position = int(lvl.integer("position", "level"))
	} else if name := rec.str("level"); name != "" {
		level.Name = name
	}

	profile := domain.PlayerProfile{
		PlayerRef:   rec.str("player", "player_id", "playerId"),
		Name:        nameOf(rec),
		AvatarURL:   rec.str("image", "avatar", "avatar_url"),
		Level:       level,
		TeamID:      teamOf(rec),
		Points:      rec.integer("points"),
		Credits:     rec.integer("credits"),
		Description: rec.str("description"),
	}
	if profile.PlayerRef == "" {
		profile.PlayerRef = ref
	}
	return profile
}

// Missions decodes the mission catalog
func Missions(raw []byte) []domain.Mission {
	return each(raw, domain.ResourceMissions, func(rec record) domain.Mission {
		return domain.Mission{
			ID:          idOf(rec),
			Name:        nameOf(rec),
			Description: rec.str("description"),
			Reward:      rewardOf(rec),
		}
	})
}

// Achievements decodes the achievement catalog
func Achievements(raw []byte) []domain.Achievement {
	return each(raw, domain.ResourceAchievements, func(rec record) domain.Achievement {
		return domain.Achievement{
			ID:          idOf(rec),
			Name:        nameOf(rec),
			Description: rec.str("description"),
			ImageURL:    rec.str("image", "image_url"),
			Reward:      rewardOf(rec),
		}
	})
}

// Prizes decodes the prize catalog
func Prizes(raw []byte) []domain.Prize {
	return each(raw, domain.ResourcePrizes, func(rec record) domain.Prize {
		p := domain.Prize{
			ID:          idOf(rec),
			Name:        nameOf(rec),
			Description: rec.str("description"),
			ImageURL:    rec.str("image", "image_url"),
			Cost:        rec.integer("cost", "price"),
			Reward:      rewardOf(rec),
		}
		if stock, ok := rec.num("stock"); ok {
			n := int64(stock)
			p.Stock = &n
		}
		return p
	})
}

// Events decodes the event list
func Events(raw []byte) []domain.Event {
	return each(raw, "events", func(rec record) domain.Event {
		return domain.Event{
			ID:          idOf(rec),
			Name:        nameOf(rec),
			Description: rec.str("description"),
			Reward:      rewardOf(rec),
		}
	})
}

// Quizzes decodes the quiz catalog
func Quizzes(raw []byte) []domain.Quiz {
	return each(raw, domain.ResourceQuizzes, func(rec record) domain.Quiz {
		return domain.Quiz{
			ID:          idOf(rec),
			Name:        nameOf(rec),
			Description: rec.str("description"),
		}
	})
}

// Questions decodes quiz questions from a start response or a quiz
// definition, including definitions wrapped as {quiz:{questions:[...]}}.
func Questions(raw []byte) []domain.Question {
	items := List(raw, "questions")
	if len(items) == 0 {
		if quiz := single(raw, "quiz"); len(quiz) > 0 {
			items = quiz.list("questions")
		}
	}

	out := make([]domain.Question, 0, len(items))
	for _, item := range items {
		rec, ok := toRecord(item)
		if !ok {
			continue
		}
		q := domain.Question{
			ID:   idOf(rec),
			Text: rec.str("question", "text", "title"),
		}
		for _, c := range rec.list("choices", "answers", "options") {
			choice, ok := toRecord(c)
			if !ok {
				continue
			}
			q.Choices = append(q.Choices, domain.Choice{
				ID:    choice.str("id", "_id", "value"),
				Label: choice.str("label", "text", "answer", "title"),
			})
		}
		out = append(out, q)
	}
	return out
}

// StreakDefinition decodes one streak definition
func StreakDefinition(raw []byte) domain.StreakDefinition {
	rec := single(raw, "streak")
	return domain.StreakDefinition{
		ID:         idOf(rec),
		Name:       nameOf(rec),
		CountLimit: int(rec.integer("countLimit", "count_limit", "target")),
	}
}

// StreakProgress decodes a player's streak records
func StreakProgress(raw []byte) []domain.StreakProgress {
	return each(raw, "streaks", func(rec record) domain.StreakProgress {
		return domain.StreakProgress{
			StreakID: rec.str("streakId", "streak_id", "streak", "id", "_id"),
			Count:    int(rec.integer("count")),
			Status:   rec.str("status"),
		}
	})
}

// LeaderboardEntries decodes the ranked rows of a leaderboard
func LeaderboardEntries(raw []byte) []domain.LeaderboardEntry {
	entries := each(raw, "entries", leaderboardEntry)
	if len(entries) == 0 {
		entries = each(raw, "leaders", leaderboardEntry)
	}
	for i := range entries {
		if entries[i].Position == 0 {
			entries[i].Position = i + 1
		}
	}
	return entries
}

func leaderboardEntry(rec record) domain.LeaderboardEntry {
	score, _ := rec.num("score", "points", "total")
	return domain.LeaderboardEntry{
		Position:  int(rec.integer("position", "rank")),
		PlayerRef: rec.str("player", "player_id", "playerId", "id"),
		Name:      rec.str("name", "player_name", "playerName"),
		Score:     score,
	}
}

// StatusCompleted is the status of rows whose record carries none
const StatusCompleted = "completed"

// HistoryRows maps player-scoped action records of resource into history
// rows. Timestamps: first prefers firstCompletedOn, last prefers
// completedOn, each falling back to the other.
func HistoryRows(raw []byte, resource string) []domain.HistoryRow {
	singular := strings.TrimSuffix(resource, "s")
	return each(raw, resource, func(rec record) domain.HistoryRow {
		nested := rec.obj(singular)
		row := domain.HistoryRow{
			ID:     rec.str(singular+"Id", singular+"_id", singular, "id", "_id"),
			Name:   rec.str("name", "title", singular+"Name", singular+"_name"),
			Count:  1,
			Status: rec.str("status"),
		}
		if row.ID == "" {
			row.ID = idOf(nested)
		}
		if row.Name == "" {
			row.Name = nameOf(nested)
		}
		if rec.has("count") {
			row.Count = int(rec.integer("count"))
		}
		if row.Status == "" {
			row.Status = StatusCompleted
		}
		row.FirstAt, row.LastAt = completionDates(rec)
		return row
	})
}

func completionDates(rec record) (first, last *time.Time) {
	first = rec.timestamp("firstCompletedOn", "completedOn")
	last = rec.timestamp("completedOn", "firstCompletedOn")
	return first, last
}

// QuizResult decodes a player's result for one quiz. Actions may be a count
// or the list of completion actions.
func QuizResult(raw []byte, quizID string) domain.QuizResult {
	rec := single(raw, "result")
	result := domain.QuizResult{QuizID: quizID, Status: rec.str("status")}

	if actions, ok := asArray(rec["actions"]); ok {
		result.Actions = len(actions)
	} else {
		result.Actions = int(rec.integer("actions", "actionCount", "action_count"))
	}
	result.FirstAt, result.LastAt = completionDates(rec)
	return result
}

// DefaultQuizFeedback is surfaced when a submission response carries no
// message of its own
const DefaultQuizFeedback = "Quiz completed"

// QuizFeedback interprets a quiz submission response. Exactly one message is
// chosen: a fail message, else a pass message, else a generic message or
// result, else DefaultQuizFeedback.
func QuizFeedback(raw []byte) domain.QuizFeedback {
	rec := single(raw, "result")
	if msg := rec.str("fail_message", "failMessage"); msg != "" {
		return domain.QuizFeedback{Failed: true, Message: msg}
	}
	if msg := rec.str("pass_message", "passMessage"); msg != "" {
		return domain.QuizFeedback{Passed: true, Message: msg}
	}
	if msg := rec.str("message", "result"); msg != "" {
		return domain.QuizFeedback{Message: msg}
	}
	return domain.QuizFeedback{Message: DefaultQuizFeedback}
}
