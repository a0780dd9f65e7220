package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Jobcall26/jobdial-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'agent',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS agent_status (
	user_id    INTEGER PRIMARY KEY,
	status     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS campaigns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	script     TEXT NOT NULL DEFAULT '',
	active     BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS contacts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id INTEGER NOT NULL,
	name        TEXT NOT NULL,
	phone       TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
);

CREATE TABLE IF NOT EXISTS calls (
	id          TEXT PRIMARY KEY,
	agent_id    INTEGER NOT NULL,
	contact_id  INTEGER NOT NULL,
	campaign_id INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	ended_at    DATETIME,
	duration_s  INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (agent_id) REFERENCES users(id),
	FOREIGN KEY (contact_id) REFERENCES contacts(id)
);

CREATE INDEX IF NOT EXISTS idx_contacts_campaign ON contacts(campaign_id);
CREATE INDEX IF NOT EXISTS idx_calls_started ON calls(started_at DESC);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string, role store.Role) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, role)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, string(role))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// ListUsers returns all users ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		ORDER BY username
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var u store.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = store.Role(role)
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = store.Role(role)
	return &u, nil
}

// ==== StatusStore implementation ====

// SetAgentStatus upserts the presence row for an agent.
func (s *SQLiteStore) SetAgentStatus(ctx context.Context, userID int64, status string) error {
	query := `
		INSERT INTO agent_status (user_id, status, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET status = excluded.status, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, userID, status); err != nil {
		return fmt.Errorf("set agent status: %w", err)
	}
	return nil
}

// GetAgentStatus returns the presence row for an agent.
func (s *SQLiteStore) GetAgentStatus(ctx context.Context, userID int64) (*store.AgentStatus, error) {
	query := `SELECT user_id, status, updated_at FROM agent_status WHERE user_id = ?`

	var st store.AgentStatus
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&st.UserID, &st.Status, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent status: %w", err)
	}
	return &st, nil
}

// ListAgentStatuses returns presence rows for all agents.
func (s *SQLiteStore) ListAgentStatuses(ctx context.Context) ([]*store.AgentStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, status, updated_at FROM agent_status`)
	if err != nil {
		return nil, fmt.Errorf("list agent statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*store.AgentStatus
	for rows.Next() {
		var st store.AgentStatus
		if err := rows.Scan(&st.UserID, &st.Status, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent status: %w", err)
		}
		statuses = append(statuses, &st)
	}
	return statuses, rows.Err()
}

// ==== CampaignStore implementation ====

// CreateCampaign inserts a campaign.
func (s *SQLiteStore) CreateCampaign(ctx context.Context, name, script string) (*store.Campaign, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (name, script) VALUES (?, ?)`, name, script)
	if err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetCampaign(ctx, id)
}

// GetCampaign retrieves a campaign by ID.
func (s *SQLiteStore) GetCampaign(ctx context.Context, id int64) (*store.Campaign, error) {
	var c store.Campaign
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, script, active, created_at FROM campaigns WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Script, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &c, nil
}

// ListCampaigns returns all campaigns, newest first.
func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]*store.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, script, active, created_at FROM campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*store.Campaign
	for rows.Next() {
		var c store.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Script, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, &c)
	}
	return campaigns, rows.Err()
}

// CreateContact inserts a contact into a campaign.
func (s *SQLiteStore) CreateContact(ctx context.Context, campaignID int64, name, phone string) (*store.Contact, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (campaign_id, name, phone) VALUES (?, ?, ?)`,
		campaignID, name, phone)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetContact(ctx, id)
}

// GetContact retrieves a contact by ID.
func (s *SQLiteStore) GetContact(ctx context.Context, id int64) (*store.Contact, error) {
	var c store.Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, name, phone, created_at FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.CampaignID, &c.Name, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

// ListContacts returns contacts for a campaign.
func (s *SQLiteStore) ListContacts(ctx context.Context, campaignID int64) ([]*store.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, name, phone, created_at FROM contacts WHERE campaign_id = ? ORDER BY id`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*store.Contact
	for rows.Next() {
		var c store.Contact
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}

// ==== CallStore implementation ====

// InsertCall records a finished (or in-progress) call.
func (s *SQLiteStore) InsertCall(ctx context.Context, call *store.Call) error {
	query := `
		INSERT INTO calls (id, agent_id, contact_id, campaign_id, outcome, started_at, ended_at, duration_s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var endedAt any
	if call.EndedAt != nil {
		endedAt = call.EndedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		call.ID, call.AgentID, call.ContactID, call.CampaignID,
		string(call.Outcome), call.StartedAt.UTC(), endedAt, call.DurationS)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// GetCall retrieves a call by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*store.Call, error) {
	query := `
		SELECT id, agent_id, contact_id, campaign_id, outcome, started_at, ended_at, duration_s
		FROM calls WHERE id = ?
	`
	var c store.Call
	var outcome string
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.AgentID, &c.ContactID, &c.CampaignID, &outcome, &c.StartedAt, &endedAt, &c.DurationS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	c.Outcome = store.CallOutcome(outcome)
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return &c, nil
}

// ListCalls returns recent call history, newest first.
func (s *SQLiteStore) ListCalls(ctx context.Context, limit int) ([]*store.Call, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, agent_id, contact_id, campaign_id, outcome, started_at, ended_at, duration_s
		FROM calls ORDER BY started_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var calls []*store.Call
	for rows.Next() {
		var c store.Call
		var outcome string
		var endedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.AgentID, &c.ContactID, &c.CampaignID, &outcome, &c.StartedAt, &endedAt, &c.DurationS); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Outcome = store.CallOutcome(outcome)
		if endedAt.Valid {
			t := endedAt.Time
			c.EndedAt = &t
		}
		calls = append(calls, &c)
	}
	return calls, rows.Err()
}
