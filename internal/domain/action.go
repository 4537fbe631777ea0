package domain

import "time"

// ActionKind names a mutating operation performed through the console
type ActionKind string

const (
	ActionCredentialsStored ActionKind = "credentials_stored"
	ActionPlayerCreated     ActionKind = "player_created"
	ActionPrizeClaimed      ActionKind = "prize_claimed"
	ActionEventCompleted    ActionKind = "event_completed"
	ActionQuizSubmitted     ActionKind = "quiz_submitted"
)

// ActionRecord is an audit entry for one mutating operation
type ActionRecord struct {
	ID        string     `json:"id"`
	Account   string     `json:"account"`
	PlayerRef string     `json:"player_ref,omitempty"`
	Kind      ActionKind `json:"kind"`
	TargetID  string     `json:"target_id,omitempty"`
	Succeeded bool       `json:"succeeded"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
