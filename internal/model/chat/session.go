package chat

import "time"

// SessionState captures one conversation for the lifetime of the process.
type SessionState struct {
	ID              string             `json:"id"`
	ActivePersonaID string             `json:"activePersonaId"`
	History         []Turn             `json:"history"`
	Escalations     []EscalationRecord `json:"escalations"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// Clone returns a deep copy safe to hand out of the session store.
func (s SessionState) Clone() SessionState {
	out := s
	out.History = append([]Turn(nil), s.History...)
	out.Escalations = append([]EscalationRecord(nil), s.Escalations...)
	return out
}

