package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Role distinguishes what a user may do on the dashboard.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Supervises reports whether the role receives supervision alerts.
func (r Role) Supervises() bool {
	return r == RoleSupervisor || r == RoleAdmin
}

// User is an agent or supervisor account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AgentStatus values mirror what the softphone reports.
const (
	StatusAvailable = "available"
	StatusOnCall    = "on_call"
	StatusPaused    = "paused"
	StatusOffline   = "offline"
)

// AgentStatus is the persisted presence row for one agent.
type AgentStatus struct {
	UserID    int64     `json:"userId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Campaign is a dialing campaign contacts belong to.
type Campaign struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Script    string    `json:"script"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contact is a lead reachable by a campaign.
type Contact struct {
	ID         int64     `json:"id"`
	CampaignID int64     `json:"campaignId"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CallOutcome is the disposition of a finished call.
type CallOutcome string

const (
	OutcomeAnswered CallOutcome = "answered"
	OutcomeNoAnswer CallOutcome = "no_answer"
	OutcomeBusy     CallOutcome = "busy"
	OutcomeDropped  CallOutcome = "dropped"
)

// Call is one row of call history.
type Call struct {
	ID         string      `json:"id"` // UUID
	AgentID    int64       `json:"agentId"`
	ContactID  int64       `json:"contactId"`
	CampaignID int64       `json:"campaignId"`
	Outcome    CallOutcome `json:"outcome"`
	StartedAt  time.Time   `json:"startedAt"`
	EndedAt    *time.Time  `json:"endedAt,omitempty"`
	DurationS  int64       `json:"durationSeconds"`
}

// UserStore handles user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string, role Role) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// StatusStore persists agent presence.
type StatusStore interface {
	SetAgentStatus(ctx context.Context, userID int64, status string) error
	GetAgentStatus(ctx context.Context, userID int64) (*AgentStatus, error)
	ListAgentStatuses(ctx context.Context) ([]*AgentStatus, error)
}

// CampaignStore handles campaigns and their contacts.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, name, script string) (*Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*Campaign, error)
	ListCampaigns(ctx context.Context) ([]*Campaign, error)
	CreateContact(ctx context.Context, campaignID int64, name, phone string) (*Contact, error)
	GetContact(ctx context.Context, id int64) (*Contact, error)
	ListContacts(ctx context.Context, campaignID int64) ([]*Contact, error)
}

// CallStore records call history.
type CallStore interface {
	InsertCall(ctx context.Context, call *Call) error
	GetCall(ctx context.Context, id string) (*Call, error)
	ListCalls(ctx context.Context, limit int) ([]*Call, error)
}

// Store aggregates all persistence concerns.
type Store interface {
	UserStore
	StatusStore
	CampaignStore
	CallStore
	Close() error
}
