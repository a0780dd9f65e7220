// Package telephony originates and terminates calls. The real provider
// (Twilio/WebRTC) is not integrated yet; Mock stands in for it and feeds
// the relay the same payloads the integration eventually will.
package telephony

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
)

// ErrCallNotFound is returned when ending an unknown or finished call.
var ErrCallNotFound = errors.New("call not found")

// CallPayload is what the softphone receives inside call_event frames.
type CallPayload struct {
	ID          string `json:"id"`
	Campaign    string `json:"campaign"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	StartedAt   string `json:"startedAt"`
}

// ActiveCall tracks a call between start and end.
type ActiveCall struct {
	ID         string
	AgentID    int64
	ContactID  int64
	CampaignID int64
	StartedAt  time.Time
	Payload    CallPayload
}

// Provider originates and terminates calls with the telephony backend.
type Provider interface {
	StartCall(ctx context.Context, agent *store.User, contact *store.Contact, campaign *store.Campaign) (*ActiveCall, error)
	EndCall(ctx context.Context, callID string) (*ActiveCall, error)
}

// Mock is an in-memory provider generating plausible call traffic.
type Mock struct {
	mu     sync.Mutex
	active map[string]*ActiveCall
}

// NewMock builds the mock provider.
func NewMock() *Mock {
	return &Mock{active: make(map[string]*ActiveCall)}
}

// StartCall registers an active call and returns its payload.
func (m *Mock) StartCall(_ context.Context, agent *store.User, contact *store.Contact, campaign *store.Campaign) (*ActiveCall, error) {
	now := time.Now()
	call := &ActiveCall{
		ID:         uuid.NewString(),
		AgentID:    agent.ID,
		ContactID:  contact.ID,
		CampaignID: campaign.ID,
		StartedAt:  now,
		Payload: CallPayload{
			Campaign:    campaign.Name,
			ContactName: contact.Name,
			Phone:       contact.Phone,
			StartedAt:   now.UTC().Format(time.RFC3339),
		},
	}
	call.Payload.ID = call.ID

	m.mu.Lock()
	m.active[call.ID] = call
	m.mu.Unlock()
	return call, nil
}

// EndCall removes and returns the active call.
func (m *Mock) EndCall(_ context.Context, callID string) (*ActiveCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.active[callID]
	if !ok {
		return nil, ErrCallNotFound
	}
	delete(m.active, callID)
	return call, nil
}

// Service drives the provider, records history, and pushes call events to
// the agent's softphone through the relay.
type Service struct {
	provider Provider
	calls    store.CallStore
	disp     *relay.Dispatcher
	log      *zerolog.Logger
}

// NewService wires provider, call history store, and dispatcher.
func NewService(provider Provider, calls store.CallStore, disp *relay.Dispatcher, logger *zerolog.Logger) *Service {
	return &Service{provider: provider, calls: calls, disp: disp, log: logger}
}

// Simulate starts a call and pushes the incoming event to the agent.
func (s *Service) Simulate(ctx context.Context, agent *store.User, contact *store.Contact, campaign *store.Campaign) (*ActiveCall, error) {
	call, err := s.provider.StartCall(ctx, agent, contact, campaign)
	if err != nil {
		return nil, fmt.Errorf("start call: %w", err)
	}

	s.log.Info().Str("call_id", call.ID).Int64("agent_id", agent.ID).Str("phone", contact.Phone).Msg("call started")
	s.disp.NotifyCallEvent(ctx, agent.ID, proto.CallEventIncoming, call.Payload)
	return call, nil
}

// End terminates a call, writes the history row, and pushes the ended
// event to the agent.
func (s *Service) End(ctx context.Context, callID string, outcome store.CallOutcome) (*store.Call, error) {
	call, err := s.provider.EndCall(ctx, callID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := &store.Call{
		ID:         call.ID,
		AgentID:    call.AgentID,
		ContactID:  call.ContactID,
		CampaignID: call.CampaignID,
		Outcome:    outcome,
		StartedAt:  call.StartedAt,
		EndedAt:    &now,
		DurationS:  int64(now.Sub(call.StartedAt).Seconds()),
	}
	if err := s.calls.InsertCall(ctx, record); err != nil {
		// History is best effort; the agent still gets the ended event.
		s.log.Error().Err(err).Str("call_id", call.ID).Msg("failed to record call history")
	}

	s.log.Info().Str("call_id", call.ID).Int64("agent_id", call.AgentID).Str("outcome", string(outcome)).Msg("call ended")
	s.disp.NotifyCallEvent(ctx, call.AgentID, proto.CallEventEnded, call.Payload)
	return record, nil
}
