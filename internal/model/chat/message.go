package chat

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser    Role = "user"
	RolePersona Role = "persona"
)

// Turn is one recorded conversation entry. Turns are never edited once stored.
type Turn struct {
	Role      Role      `json:"role"`
	PersonaID string    `json:"personaId,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// EscalationRecord logs one automatic handoff to the crisis persona.
type EscalationRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Trigger   string    `json:"trigger"`
	Action    string    `json:"action"`
}
