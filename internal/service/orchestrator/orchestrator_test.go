package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sparkforge/spark-os/backend/internal/model/chat"
	"github.com/sparkforge/spark-os/backend/internal/model/persona"
	"github.com/sparkforge/spark-os/backend/internal/service/ai"
	chatservice "github.com/sparkforge/spark-os/backend/internal/service/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type generateCall struct {
	personaID string
	history   int
	message   string
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []generateCall
}

func (g *fakeGenerator) Generate(_ context.Context, p persona.Persona, history []chat.Turn, message string) string {
	g.mu.Lock()
	g.calls = append(g.calls, generateCall{personaID: p.ID, history: len(history), message: message})
	g.mu.Unlock()
	return ai.ApplyAnchor("reply from "+p.ID, p.Anchor)
}

type fixture struct {
	orch     *Orchestrator
	sessions *chatservice.Service
	gen      *fakeGenerator
	store    *persona.MemoryStore
}

func newFixture() fixture {
	store := persona.NewMemoryStore(persona.Seed())
	sessions := chatservice.NewService(store, nil)
	gen := &fakeGenerator{}
	return fixture{
		orch:     New(store, sessions, gen, nil),
		sessions: sessions,
		gen:      gen,
		store:    store,
	}
}

func TestTurnWithoutTriggerStaysWithTutor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.orch.SubmitTurn(ctx, "k", "I don't understand fractions")
	require.NoError(t, err)

	assert.False(t, out.Routed)
	assert.Empty(t, out.RoutingNotice)
	assert.Equal(t, persona.TutorID, out.PersonaID)
	assert.Equal(t, 0, out.EscalationCount)
	assert.Contains(t, out.Reply, "reply from tutor")
	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, persona.TutorID, f.gen.calls[0].personaID)
}

func TestTriggerEscalatesToCrisis(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.orch.SubmitTurn(ctx, "k", "my dad hits me when I get it wrong")
	require.NoError(t, err)

	assert.True(t, out.Routed)
	assert.Equal(t, persona.CrisisID, out.PersonaID)
	assert.Equal(t, "Guardian", out.PersonaName)
	assert.Equal(t, 1, out.EscalationCount)
	assert.Contains(t, out.RoutingNotice, "Guardian")
	assert.NotEqual(t, out.RoutingNotice, out.Reply)

	// generation ran as the crisis persona, not the tutor
	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, persona.CrisisID, f.gen.calls[0].personaID)

	crisis, _ := f.store.Get(persona.CrisisID)
	assert.True(t, strings.HasSuffix(out.Reply, crisis.Anchor))

	state, err := f.sessions.Get(ctx, "k")
	require.NoError(t, err)
	require.Len(t, state.Escalations, 1)
	assert.Equal(t, EscalationAction, state.Escalations[0].Action)
	assert.Equal(t, "my dad hits me when I get it wrong", state.Escalations[0].Trigger)
	assert.Equal(t, persona.CrisisID, state.ActivePersonaID)
}

func TestEveryTriggerEscalatesExactlyOnce(t *testing.T) {
	for _, trigger := range persona.NewMemoryStore(persona.Seed()).SafetyTriggers() {
		t.Run(trigger, func(t *testing.T) {
			f := newFixture()
			out, err := f.orch.SubmitTurn(context.Background(), "k", "today "+strings.ToUpper(trigger)+" happened")
			require.NoError(t, err)
			assert.Equal(t, persona.CrisisID, out.PersonaID)
			assert.Equal(t, 1, out.EscalationCount)
		})
	}
}

func TestCrisisIsTerminal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orch.SubmitTurn(ctx, "k", "I am scared")
	require.NoError(t, err)

	for _, msg := range []string{"I hit a wall", "he will yell", "I'm sad", "thanks"} {
		out, err := f.orch.SubmitTurn(ctx, "k", msg)
		require.NoError(t, err)
		assert.False(t, out.Routed)
		assert.Empty(t, out.RoutingNotice)
		assert.Equal(t, persona.CrisisID, out.PersonaID)
		assert.Equal(t, 1, out.EscalationCount)
	}
}

func TestCrisisSessionViaSwitchDoesNotEscalate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orch.SwitchPersona(ctx, "k", persona.CrisisID)
	require.NoError(t, err)

	out, err := f.orch.SubmitTurn(ctx, "k", "I hit a wall")
	require.NoError(t, err)
	assert.False(t, out.Routed)
	assert.Equal(t, persona.CrisisID, out.PersonaID)
	assert.Equal(t, 0, out.EscalationCount)
}

func TestHistoryGrowsTwoPerTurnInOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	messages := []string{"what is 1/2?", "is it half?", "he hit me", "ok"}

	for k, msg := range messages {
		_, err := f.orch.SubmitTurn(ctx, "k", msg)
		require.NoError(t, err)

		state, _ := f.sessions.Get(ctx, "k")
		require.Len(t, state.History, 2*(k+1))
		assert.Equal(t, chat.RoleUser, state.History[2*k].Role)
		assert.Equal(t, msg, state.History[2*k].Content)
		assert.Equal(t, chat.RolePersona, state.History[2*k+1].Role)
	}

	// the gateway saw the history as it stood before each turn
	for i, call := range f.gen.calls {
		assert.Equal(t, 2*i, call.history)
	}
}

func TestEmptyMessageIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := f.orch.SubmitTurn(ctx, "k", msg)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, f.gen.calls)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestSwitchPersonaUnknown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.orch.SubmitTurn(ctx, "k", "hello")
	require.NoError(t, err)

	_, err = f.orch.SwitchPersona(ctx, "k", "pirate")
	require.Error(t, err)
	assert.True(t, errors.Is(err, persona.ErrUnknownPersona))

	status, err := f.orch.Status(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, persona.TutorID, status.ActivePersonaID)
}

func TestExplicitSwitchRecordsNoEscalation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p, err := f.orch.SwitchPersona(ctx, "k", persona.AdminID)
	require.NoError(t, err)
	assert.Equal(t, "Teacher Admin", p.Name)

	out, err := f.orch.SubmitTurn(ctx, "k", "draft a parent email")
	require.NoError(t, err)
	assert.Equal(t, persona.AdminID, out.PersonaID)
	assert.Equal(t, 0, out.EscalationCount)

	_, err = f.orch.SwitchPersona(ctx, "k", persona.CrisisID)
	require.NoError(t, err)
	status, _ := f.orch.Status(ctx, "k")
	assert.Empty(t, status.Escalations)
	assert.Equal(t, 2, status.ConversationLength)
}

func TestResetStartsNewSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	before, err := f.orch.SubmitTurn(ctx, "k", "he hit me")
	require.NoError(t, err)

	f.orch.Reset(ctx, "k")

	status, err := f.orch.Status(ctx, "k")
	require.NoError(t, err)
	assert.NotEqual(t, before.SessionID, status.SessionID)
	assert.Equal(t, 0, status.ConversationLength)
	assert.Empty(t, status.Escalations)
	assert.Equal(t, persona.TutorID, status.ActivePersonaID)
}

func TestGatewayFailureStillYieldsAnchoredReply(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	sessions := chatservice.NewService(store, nil)
	gw := ai.NewGateway(ai.CompleterFunc(func(context.Context, ai.Request) (string, error) {
		return "", errors.New("connection refused")
	}), ai.DefaultGatewayOptions(), nil)
	orch := New(store, sessions, gw, nil)
	ctx := context.Background()

	out, err := orch.SubmitTurn(ctx, "k", "what is 3/4?")
	require.NoError(t, err)
	tutor, _ := store.Get(persona.TutorID)
	assert.True(t, strings.HasSuffix(out.Reply, tutor.Anchor))

	out, err = orch.SubmitTurn(ctx, "k", "don't tell my mom")
	require.NoError(t, err)
	crisis, _ := store.Get(persona.CrisisID)
	assert.True(t, out.Routed)
	assert.True(t, strings.HasSuffix(out.Reply, crisis.Anchor))

	state, _ := sessions.Get(ctx, "k")
	assert.Len(t, state.History, 4)
}

func TestSessionsDoNotInteract(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orch.SubmitTurn(ctx, "student-a", "I'm scared")
	require.NoError(t, err)

	out, err := f.orch.SubmitTurn(ctx, "student-b", "what is 2/4?")
	require.NoError(t, err)
	assert.Equal(t, persona.TutorID, out.PersonaID)
	assert.Equal(t, 0, out.EscalationCount)
}

func TestConcurrentSessions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, _ = f.orch.SubmitTurn(ctx, key, "count with me")
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	assert.Equal(t, 8, f.sessions.Len())
	state, _ := f.sessions.Get(ctx, "a")
	assert.Len(t, state.History, 10)
}
