package domain

// Credentials identify the tenant account and authorize every upstream call
type Credentials struct {
	Account string `json:"account"`
	APIKey  string `json:"api_key"`
}

// Complete reports whether both fields are present
func (c Credentials) Complete() bool {
	return c.Account != "" && c.APIKey != ""
}

// Player is an entry in the player directory. PlayerRef is the identifier
// used by player-scoped endpoints.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PlayerRef string `json:"player_ref"`
	AvatarURL string `json:"avatar_url,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
}

// NewPlayer is the input for player creation
type NewPlayer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Team is a named group of players
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Level is the player's current progression tier
type Level struct {
	Name     string `json:"name"`
	Position int    `json:"position,omitempty"`
}

// DefaultLevelName is shown when the upstream record carries no level
const DefaultLevelName = "Unknown Level"

// PlayerProfile is the read model for the selected player
type PlayerProfile struct {
	PlayerRef   string `json:"player_ref"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Level       Level  `json:"level"`
	TeamID      string `json:"team_id,omitempty"`
	TeamName    string `json:"team_name"`
	Points      int64  `json:"points"`
	Credits     int64  `json:"credits"`
	Description string `json:"description"`
}

// MergeProgress copies the fields that change as a player progresses.
// Everything else is left as loaded.
func (p *PlayerProfile) MergeProgress(latest PlayerProfile) {
	p.Level = latest.Level
	p.Points = latest.Points
	p.Credits = latest.Credits
}
