package telephony

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jobcall26/jobdial-server/internal/log"
	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
)

type captureTransport struct {
	mu     sync.Mutex
	frames []proto.Outbound
}

func (t *captureTransport) Send(_ context.Context, frame proto.Outbound) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, frame)
	return nil
}

func (t *captureTransport) Close(int, string) error { return nil }

func (t *captureTransport) Frames() []proto.Outbound {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]proto.Outbound(nil), t.frames...)
}

type memCallStore struct {
	mu         sync.Mutex
	calls      []*store.Call
	failInsert bool
}

func (m *memCallStore) InsertCall(_ context.Context, call *store.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return errors.New("insert failed")
	}
	m.calls = append(m.calls, call)
	return nil
}

func (m *memCallStore) GetCall(_ context.Context, id string) (*store.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memCallStore) ListCalls(_ context.Context, limit int) ([]*store.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.calls) {
		limit = len(m.calls)
	}
	return append([]*store.Call(nil), m.calls[:limit]...), nil
}

type callEnv struct {
	svc   *Service
	calls *memCallStore
	agent *captureTransport
}

func newCallEnv(t *testing.T) *callEnv {
	t.Helper()

	logger := log.Nop()
	registry := relay.NewRegistry()
	dispatcher := relay.NewDispatcher(registry, logger)

	agentTr := &captureTransport{}
	registry.Register(relay.NewConn("conn-agent", 42, store.RoleAgent, agentTr))

	calls := &memCallStore{}
	return &callEnv{
		svc:   NewService(NewMock(), calls, dispatcher, logger),
		calls: calls,
		agent: agentTr,
	}
}

func fixtures() (*store.User, *store.Contact, *store.Campaign) {
	agent := &store.User{ID: 42, Username: "dupont", Role: store.RoleAgent}
	contact := &store.Contact{ID: 3, CampaignID: 1, Name: "Martin", Phone: "+33612345678"}
	campaign := &store.Campaign{ID: 1, Name: "renewals"}
	return agent, contact, campaign
}

func TestSimulatePushesIncomingCallEvent(t *testing.T) {
	env := newCallEnv(t)
	agent, contact, campaign := fixtures()

	call, err := env.svc.Simulate(context.Background(), agent, contact, campaign)
	require.NoError(t, err)
	assert.NotEmpty(t, call.ID)

	frames := env.agent.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, proto.TypeCallEvent, frames[0].Type)

	data, ok := frames[0].Data.(proto.CallEventData)
	require.True(t, ok)
	assert.Equal(t, proto.CallEventIncoming, data.Event)

	payload, ok := data.Call.(CallPayload)
	require.True(t, ok)
	assert.Equal(t, call.ID, payload.ID)
	assert.Equal(t, "Martin", payload.ContactName)
	assert.Equal(t, "+33612345678", payload.Phone)
	assert.Equal(t, "renewals", payload.Campaign)
}

func TestEndRecordsHistoryAndPushesEndedEvent(t *testing.T) {
	env := newCallEnv(t)
	agent, contact, campaign := fixtures()
	ctx := context.Background()

	call, err := env.svc.Simulate(ctx, agent, contact, campaign)
	require.NoError(t, err)

	record, err := env.svc.End(ctx, call.ID, store.OutcomeAnswered)
	require.NoError(t, err)
	assert.Equal(t, call.ID, record.ID)
	assert.Equal(t, store.OutcomeAnswered, record.Outcome)
	require.NotNil(t, record.EndedAt)

	stored, err := env.calls.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.AgentID)

	frames := env.agent.Frames()
	require.Len(t, frames, 2)
	data := frames[1].Data.(proto.CallEventData)
	assert.Equal(t, proto.CallEventEnded, data.Event)
}

func TestEndUnknownCall(t *testing.T) {
	env := newCallEnv(t)

	_, err := env.svc.End(context.Background(), "no-such-call", store.OutcomeDropped)
	assert.ErrorIs(t, err, ErrCallNotFound)
}

func TestEndTwiceFails(t *testing.T) {
	env := newCallEnv(t)
	agent, contact, campaign := fixtures()
	ctx := context.Background()

	call, err := env.svc.Simulate(ctx, agent, contact, campaign)
	require.NoError(t, err)

	_, err = env.svc.End(ctx, call.ID, store.OutcomeAnswered)
	require.NoError(t, err)

	_, err = env.svc.End(ctx, call.ID, store.OutcomeAnswered)
	assert.ErrorIs(t, err, ErrCallNotFound)
}

func TestEndSurvivesHistoryWriteFailure(t *testing.T) {
	env := newCallEnv(t)
	env.calls.failInsert = true
	agent, contact, campaign := fixtures()
	ctx := context.Background()

	call, err := env.svc.Simulate(ctx, agent, contact, campaign)
	require.NoError(t, err)

	// History write failure must not block the ended event.
	record, err := env.svc.End(ctx, call.ID, store.OutcomeNoAnswer)
	require.NoError(t, err)
	assert.Equal(t, call.ID, record.ID)

	frames := env.agent.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, proto.TypeCallEvent, frames[1].Type)
}
