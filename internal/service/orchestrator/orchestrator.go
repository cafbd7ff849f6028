// Package orchestrator runs the persona routing state machine for one chat
// turn at a time.
//
// States are persona identifiers and every session starts in the tutor state.
// The only automatic edge leads to the crisis persona, which has no outgoing
// automatic edge. Every other transfer is an explicit SwitchPersona call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/analysis/safety"
	"github.com/sparkforge/spark-os/backend/internal/model/chat"
	"github.com/sparkforge/spark-os/backend/internal/model/persona"
	chatservice "github.com/sparkforge/spark-os/backend/internal/service/chat"
)

// ErrInvalidInput rejects empty turns before any safety evaluation.
var ErrInvalidInput = errors.New("message is required")

// EscalationAction is recorded for every automatic handoff.
const EscalationAction = "routed to crisis persona"

// Generator produces a persona reply and never fails.
type Generator interface {
	Generate(ctx context.Context, p persona.Persona, history []chat.Turn, message string) string
}

// Outcome is the result of one submitted turn.
type Outcome struct {
	SessionID       string `json:"sessionId"`
	Reply           string `json:"response"`
	PersonaID       string `json:"currentPersona"`
	PersonaName     string `json:"personaName"`
	Routed          bool   `json:"routingOccurred"`
	RoutingNotice   string `json:"routingMessage,omitempty"`
	EscalationCount int    `json:"safetyAlerts"`
}

// Status summarizes a session for the supervising adult.
type Status struct {
	SessionID          string                  `json:"sessionId"`
	ActivePersonaID    string                  `json:"currentPersona"`
	Escalations        []chat.EscalationRecord `json:"safetyAlerts"`
	ConversationLength int                     `json:"conversationLength"`
	StartedAt          time.Time               `json:"sessionStart"`
}

// Orchestrator ties the persona registry, session store and generator together.
type Orchestrator struct {
	personas  persona.Store
	sessions  *chatservice.Service
	generator Generator
	logger    *zap.Logger
}

// New creates an Orchestrator.
func New(personas persona.Store, sessions *chatservice.Service, generator Generator, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		personas:  personas,
		sessions:  sessions,
		generator: generator,
		logger:    logger,
	}
}

// SubmitTurn processes one message for the session identified by key.
func (o *Orchestrator) SubmitTurn(ctx context.Context, key, message string) (Outcome, error) {
	if strings.TrimSpace(message) == "" {
		return Outcome{}, ErrInvalidInput
	}

	state, err := o.sessions.GetOrCreate(ctx, key)
	if err != nil {
		return Outcome{}, err
	}

	active := state.ActivePersonaID
	escalations := len(state.Escalations)
	routed := false
	notice := ""

	if safety.ShouldEscalate(message, active, o.personas.SafetyTriggers()) {
		crisis, err := o.personas.Get(persona.CrisisID)
		if err != nil {
			return Outcome{}, fmt.Errorf("escalate: %w", err)
		}
		if _, err := o.sessions.SwitchPersona(ctx, key, crisis.ID); err != nil {
			return Outcome{}, fmt.Errorf("escalate: %w", err)
		}
		escalations, err = o.sessions.RecordEscalation(ctx, key, message, EscalationAction)
		if err != nil {
			return Outcome{}, fmt.Errorf("escalate: %w", err)
		}

		trigger, _ := safety.MatchedTrigger(message, o.personas.SafetyTriggers())
		o.logger.Warn("safety trigger matched, routing to crisis persona",
			zap.String("session_id", state.ID),
			zap.String("from", active),
			zap.String("trigger", trigger),
			zap.Int("escalations", escalations))

		active = crisis.ID
		routed = true
		notice = RoutingNotice(crisis)
	}

	current, err := o.personas.Get(active)
	if err != nil {
		return Outcome{}, err
	}

	reply := o.generator.Generate(ctx, current, state.History, message)

	if err := o.sessions.RecordTurn(ctx, key, chat.RoleUser, current.ID, message); err != nil {
		return Outcome{}, err
	}
	if err := o.sessions.RecordTurn(ctx, key, chat.RolePersona, current.ID, reply); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		SessionID:       state.ID,
		Reply:           reply,
		PersonaID:       current.ID,
		PersonaName:     current.Name,
		Routed:          routed,
		RoutingNotice:   notice,
		EscalationCount: escalations,
	}, nil
}

// SwitchPersona is an explicit operator or UI choice. It bypasses the safety
// evaluator and never records an escalation.
func (o *Orchestrator) SwitchPersona(ctx context.Context, key, personaID string) (persona.Persona, error) {
	target, err := o.personas.Get(personaID)
	if err != nil {
		return persona.Persona{}, err
	}
	state, err := o.sessions.SwitchPersona(ctx, key, target.ID)
	if err != nil {
		return persona.Persona{}, err
	}
	o.logger.Info("persona switched",
		zap.String("session_id", state.ID),
		zap.String("persona", target.ID))
	return target, nil
}

// Reset discards the session for key.
func (o *Orchestrator) Reset(ctx context.Context, key string) {
	o.sessions.Reset(ctx, key)
}

// Status reports the session for key, creating it if needed.
func (o *Orchestrator) Status(ctx context.Context, key string) (Status, error) {
	state, err := o.sessions.GetOrCreate(ctx, key)
	if err != nil {
		return Status{}, err
	}
	escalations := state.Escalations
	if escalations == nil {
		escalations = []chat.EscalationRecord{}
	}
	return Status{
		SessionID:          state.ID,
		ActivePersonaID:    state.ActivePersonaID,
		Escalations:        escalations,
		ConversationLength: len(state.History),
		StartedAt:          state.CreatedAt,
	}, nil
}

// RoutingNotice is shown to the student before the crisis persona's reply.
func RoutingNotice(crisis persona.Persona) string {
	return fmt.Sprintf("I can see you have some big feelings right now. Let me connect you with %s, who is really good at helping with feelings.", crisis.Name)
}
