package domain

// Reward is what completing an item grants
type Reward struct {
	Points  int64 `json:"points"`
	Credits int64 `json:"credits"`
}

// Mission is a catalog mission
type Mission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Reward      Reward `json:"reward"`
}

// Achievement is a catalog achievement
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Reward      Reward `json:"reward"`
}

// Prize is a catalog prize a player can claim
type Prize struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Cost        int64  `json:"cost"`
	Stock       *int64 `json:"stock,omitempty"`
	Reward      Reward `json:"reward"`
}

// Event is an action an operator can complete on behalf of a player
type Event struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Reward      Reward `json:"reward"`
}

// StreakDefinition is the account-level streak configuration
type StreakDefinition struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CountLimit int    `json:"count_limit"`
}

// StreakProgress is a player's position in a streak
type StreakProgress struct {
	StreakID string `json:"streak_id"`
	Count    int    `json:"count"`
	Status   string `json:"status"`
}

// StreakStatusNotStarted marks progress synthesized for players with no record
const StreakStatusNotStarted = "not_started"

// Streak pairs a definition with the player's progress
type Streak struct {
	Definition StreakDefinition `json:"definition"`
	Progress   StreakProgress   `json:"progress"`
}

// LeaderboardEntry is one ranked row of the fixed leaderboard
type LeaderboardEntry struct {
	Position  int     `json:"position"`
	PlayerRef string  `json:"player_ref"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
}
