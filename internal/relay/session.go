package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/auth"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
	"github.com/Jobcall26/jobdial-server/internal/utils"
)

// State of a session's per-connection state machine.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

// StatusSink persists agent presence changes. Failures are logged by the
// session, never retried or propagated.
type StatusSink interface {
	UpdateAgentStatus(ctx context.Context, userID int64, status string) error
}

// Directory resolves user accounts during the handshake, mainly to attach
// a role to bare-userId logins.
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// TokenValidator verifies a JWT from an authenticate frame.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Session handles one socket from open to close: the authentication
// handshake, status fan-out while authenticated, and teardown. Frame I/O
// stays in the transport layer; the session only sees parsed bytes.
type Session struct {
	id     string
	reg    *Registry
	disp   *Dispatcher
	status StatusSink
	dir    Directory
	tokens TokenValidator
	tr     Transport
	log    zerolog.Logger

	mu    sync.Mutex
	state State
	conn  *Conn
}

// SessionDeps carries the collaborators a session needs.
type SessionDeps struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Status     StatusSink
	Directory  Directory
	Tokens     TokenValidator
}

// NewSession builds a session for a freshly accepted transport.
func NewSession(deps SessionDeps, tr Transport, logger *zerolog.Logger) *Session {
	id := utils.NewConnID()
	return &Session{
		id:     id,
		reg:    deps.Registry,
		disp:   deps.Dispatcher,
		status: deps.Status,
		dir:    deps.Directory,
		tokens: deps.Tokens,
		tr:     tr,
		log:    logger.With().Str("conn_id", id).Logger(),
	}
}

// ID returns the connection identifier used in logs.
func (s *Session) ID() string { return s.id }

// Authenticated reports whether the handshake completed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

// Open sends the unsolicited welcome frame. It confirms the transport is
// live independent of authentication.
func (s *Session) Open(ctx context.Context) {
	frame := proto.Outbound{
		Type: proto.TypeConnectionEstablished,
		Data: proto.ConnectionEstablishedData{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	}
	if err := s.tr.Send(ctx, frame); err != nil {
		s.log.Warn().Err(err).Msg("failed to send welcome frame")
	}
}

// HandleFrame processes one inbound text frame. Malformed payloads and
// unknown types are logged and ignored; they never close the connection.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	var frame proto.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Warn().Err(err).Msg("malformed frame, ignoring")
		return
	}

	switch frame.Type {
	case proto.TypeAuthenticate:
		s.handleAuthenticate(ctx, frame.Data)
	case proto.TypeAgentStatus:
		s.handleAgentStatus(ctx, frame.Data)
	default:
		s.log.Debug().Str("type", frame.Type).Msg("unknown message type, ignoring")
	}
}

func (s *Session) handleAuthenticate(ctx context.Context, data json.RawMessage) {
	var req proto.AuthenticateData
	if err := json.Unmarshal(data, &req); err != nil {
		s.log.Warn().Err(err).Msg("malformed authenticate payload")
		s.sendAuthFailed(ctx, "malformed authenticate payload")
		return
	}

	userID, role, reason := s.resolveIdentity(ctx, req)
	if reason != "" {
		s.sendAuthFailed(ctx, reason)
		return
	}

	conn := NewConn(s.id, userID, role, s.tr)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prevIdentity := s.conn
	if prevIdentity != nil && prevIdentity.UserID == userID {
		// Repeat authenticate for the same user on the same socket is
		// idempotent: keep the registered handle, just re-ack.
		s.mu.Unlock()
		ack := proto.Outbound{Type: proto.TypeAuthSuccess, Data: proto.AuthSuccessData{UserID: userID}}
		if err := s.tr.Send(ctx, ack); err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to send auth_success")
		}
		return
	}
	s.state = StateAuthenticated
	s.conn = conn
	s.mu.Unlock()

	// Re-authenticating as a different user takes this socket's old
	// identity offline before the new one registers.
	if prevIdentity != nil {
		s.log.Info().Int64("old_user_id", prevIdentity.UserID).Int64("user_id", userID).Msg("socket switching identity")
		s.releaseIdentity(ctx, prevIdentity)
	}

	// A second login for the same user wins the registry slot; the old
	// transport is closed rather than left dangling. A handle sharing
	// this session's transport is never closed here.
	if prev := s.reg.Register(conn); prev != nil && prev.ID != s.id {
		s.log.Info().Int64("user_id", userID).Str("old_conn_id", prev.ID).Msg("superseding previous connection")
		if err := prev.Close(CloseSuperseded, "superseded by newer connection"); err != nil {
			s.log.Debug().Err(err).Msg("close superseded connection")
		}
	}

	s.log.Info().Int64("user_id", userID).Str("role", string(role)).Msg("agent authenticated")

	ack := proto.Outbound{Type: proto.TypeAuthSuccess, Data: proto.AuthSuccessData{UserID: userID}}
	if err := s.tr.Send(ctx, ack); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to send auth_success")
	}
}

// resolveIdentity derives (userID, role) from an authenticate payload.
// Token handshakes are verified; bare userId handshakes are trusted, with
// the role looked up from the directory when one is wired.
func (s *Session) resolveIdentity(ctx context.Context, req proto.AuthenticateData) (int64, store.Role, string) {
	if req.Token != "" && s.tokens != nil {
		claims, err := s.tokens.ValidateToken(req.Token)
		if err != nil {
			s.log.Warn().Err(err).Msg("authenticate with invalid token")
			return 0, "", "invalid token"
		}
		return claims.UserID, claims.Role, ""
	}

	if req.UserID <= 0 {
		return 0, "", "missing userId"
	}

	role := store.RoleAgent
	if s.dir != nil {
		if u, err := s.dir.GetUserByID(ctx, req.UserID); err == nil {
			role = u.Role
		} else {
			s.log.Debug().Err(err).Int64("user_id", req.UserID).Msg("role lookup failed, defaulting to agent")
		}
	}
	return req.UserID, role, ""
}

func (s *Session) sendAuthFailed(ctx context.Context, reason string) {
	// The connection stays open; the client may retry authenticate on the
	// same transport.
	frame := proto.Outbound{Type: proto.TypeAuthFailed, Data: proto.AuthFailedData{Error: reason}}
	if err := s.tr.Send(ctx, frame); err != nil {
		s.log.Warn().Err(err).Msg("failed to send auth_failed")
	}
}

func (s *Session) handleAgentStatus(ctx context.Context, data json.RawMessage) {
	s.mu.Lock()
	conn := s.conn
	authed := s.state == StateAuthenticated
	s.mu.Unlock()

	if !authed {
		s.log.Warn().Msg("agent_status before authenticate, ignoring")
		return
	}

	var req proto.AgentStatusData
	if err := json.Unmarshal(data, &req); err != nil || req.Status == "" {
		s.log.Warn().Err(err).Msg("malformed agent_status payload, ignoring")
		return
	}

	if err := s.status.UpdateAgentStatus(ctx, conn.UserID, req.Status); err != nil {
		s.log.Error().Err(err).Int64("user_id", conn.UserID).Str("status", req.Status).Msg("status update failed")
	}

	s.disp.Broadcast(ctx, proto.Outbound{
		Type: proto.TypeAgentStatusChange,
		Data: proto.AgentStatusChangeData{
			AgentID:   conn.UserID,
			Status:    req.Status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// HandleClose tears down the session after the transport closed, from
// either state. Safe to call once per session; repeat calls are no-ops.
func (s *Session) HandleClose(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.state = StateClosed
	s.mu.Unlock()

	if conn == nil {
		s.log.Debug().Msg("unauthenticated connection closed")
		return
	}

	s.releaseIdentity(ctx, conn)
}

// releaseIdentity takes one registered identity offline: unregister,
// offline status write, agent_disconnected broadcast. A handle that lost
// its registry slot to a newer connection is skipped entirely, since the
// user is still online.
func (s *Session) releaseIdentity(ctx context.Context, conn *Conn) {
	if !s.reg.Unregister(conn.UserID, conn) {
		s.log.Debug().Int64("user_id", conn.UserID).Msg("superseded connection closed")
		return
	}

	if err := s.status.UpdateAgentStatus(ctx, conn.UserID, store.StatusOffline); err != nil {
		s.log.Warn().Err(err).Int64("user_id", conn.UserID).Msg("offline status update failed")
	}

	s.log.Info().Int64("user_id", conn.UserID).Msg("agent disconnected")

	s.disp.Broadcast(ctx, proto.Outbound{
		Type: proto.TypeAgentDisconnected,
		Data: proto.AgentDisconnectedData{
			AgentID:   conn.UserID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}
