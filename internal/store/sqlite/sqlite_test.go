package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Jobcall26/jobdial-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "alice", "hash", store.RoleSupervisor)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Role != store.RoleSupervisor {
		t.Fatalf("unexpected role: %s", created.Role)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("id mismatch: %d != %d", byName.ID, created.ID)
	}

	if _, err := s.GetUserByID(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAgentStatusUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "bob", "hash", store.RoleAgent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.SetAgentStatus(ctx, u.ID, store.StatusAvailable); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := s.SetAgentStatus(ctx, u.ID, store.StatusOnCall); err != nil {
		t.Fatalf("upsert status: %v", err)
	}

	st, err := s.GetAgentStatus(ctx, u.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if st.Status != store.StatusOnCall {
		t.Fatalf("expected on_call, got %s", st.Status)
	}

	all, err := s.ListAgentStatuses(ctx)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one status row, got %d", len(all))
	}
}

func TestCampaignAndContacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	camp, err := s.CreateCampaign(ctx, "spring-renewals", "Hello, this is...")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	if !camp.Active {
		t.Fatal("new campaign should be active")
	}

	for _, c := range []struct{ name, phone string }{
		{"Ada", "+33123456789"},
		{"Grace", "+33198765432"},
	} {
		if _, err := s.CreateContact(ctx, camp.ID, c.name, c.phone); err != nil {
			t.Fatalf("create contact %s: %v", c.name, err)
		}
	}

	contacts, err := s.ListContacts(ctx, camp.ID)
	if err != nil {
		t.Fatalf("list contacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}

	if _, err := s.GetCampaign(ctx, 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCallHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, _ := s.CreateUser(ctx, "carol", "hash", store.RoleAgent)
	camp, _ := s.CreateCampaign(ctx, "survey", "")
	contact, _ := s.CreateContact(ctx, camp.ID, "Lin", "+442071234567")

	started := time.Now().Add(-90 * time.Second)
	ended := time.Now()
	call := &store.Call{
		ID:         "c-0001",
		AgentID:    u.ID,
		ContactID:  contact.ID,
		CampaignID: camp.ID,
		Outcome:    store.OutcomeAnswered,
		StartedAt:  started,
		EndedAt:    &ended,
		DurationS:  90,
	}
	if err := s.InsertCall(ctx, call); err != nil {
		t.Fatalf("insert call: %v", err)
	}

	got, err := s.GetCall(ctx, "c-0001")
	if err != nil {
		t.Fatalf("get call: %v", err)
	}
	if got.Outcome != store.OutcomeAnswered || got.DurationS != 90 {
		t.Fatalf("unexpected call row: %+v", got)
	}
	if got.EndedAt == nil {
		t.Fatal("expected ended_at to be set")
	}

	calls, err := s.ListCalls(ctx, 10)
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
}
