package domain

import "time"

// HistoryRow is a display-ready record of one completed interaction
type HistoryRow struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Count   int        `json:"count"`
	FirstAt *time.Time `json:"first_at,omitempty"`
	LastAt  *time.Time `json:"last_at,omitempty"`
	Status  string     `json:"status"`
}

// MissingDate is rendered in place of absent timestamps
const MissingDate = "-"

const historyDateLayout = "2006-01-02 15:04"

// FirstAtText renders the first completion date
func (r HistoryRow) FirstAtText() string {
	return formatDate(r.FirstAt)
}

// LastAtText renders the latest completion date
func (r HistoryRow) LastAtText() string {
	return formatDate(r.LastAt)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return MissingDate
	}
	return t.UTC().Format(historyDateLayout)
}

// History resource names
const (
	ResourceMissions     = "missions"
	ResourceAchievements = "achievements"
	ResourcePrizes       = "prizes"
	ResourceQuizzes      = "quizzes"
)

// History holds a player's four completion histories. Errors lists the
// resources that failed to load; their rows are empty.
type History struct {
	PlayerRef    string            `json:"player_ref"`
	Missions     []HistoryRow      `json:"missions"`
	Achievements []HistoryRow      `json:"achievements"`
	Prizes       []HistoryRow      `json:"prizes"`
	Quizzes      []HistoryRow      `json:"quizzes"`
	Errors       map[string]string `json:"errors,omitempty"`
}
