package proto

import "encoding/json"

// Frame is the parsed {type, data} envelope with the payload left raw.
// Both sides of the wire read into it.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for messages a peer builds before sending.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Message types carried over the relay. One JSON object per text frame.
const (
	TypeAuthenticate          = "authenticate"
	TypeAuthSuccess           = "auth_success"
	TypeAuthFailed            = "auth_failed"
	TypeConnectionEstablished = "connection_established"
	TypeAgentStatus           = "agent_status"
	TypeAgentStatusChange     = "agent_status_change"
	TypeAgentDisconnected     = "agent_disconnected"
	TypeCallEvent             = "call_event"
	TypeSupervisionAlert      = "supervision_alert"
	TypeNotification          = "notification"
	TypeSpyStarted            = "spy_started"
	TypeSpyStopped            = "spy_stopped"
)

// Call event names inside call_event frames.
const (
	CallEventIncoming = "incoming"
	CallEventEnded    = "ended"
)

// AuthenticateData is sent by the client to claim an identity. Token is
// preferred when present; a bare userId is accepted for softphone builds
// that have not migrated to token handshakes yet.
type AuthenticateData struct {
	UserID int64  `json:"userId,omitempty"`
	Token  string `json:"token,omitempty"`
}

// AuthSuccessData acknowledges a successful handshake.
type AuthSuccessData struct {
	UserID int64 `json:"userId"`
}

// AuthFailedData reports a rejected handshake. The connection stays open.
type AuthFailedData struct {
	Error string `json:"error"`
}

// ConnectionEstablishedData is the unsolicited welcome sent on open.
type ConnectionEstablishedData struct {
	Timestamp string `json:"timestamp"`
}

// AgentStatusData is sent by an authenticated agent to change its status.
type AgentStatusData struct {
	Status string `json:"status"`
}

// AgentStatusChangeData fans out to every connection after a status change.
type AgentStatusChangeData struct {
	AgentID   int64  `json:"agentId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// AgentDisconnectedData fans out when a registered connection closes.
type AgentDisconnectedData struct {
	AgentID   int64  `json:"agentId"`
	Timestamp string `json:"timestamp"`
}

// CallEventData pushes a telephony event to one agent.
type CallEventData struct {
	Event string `json:"event"`
	Call  any    `json:"call"`
}

// Alert is the payload of a supervision_alert frame. ID is a creation
// timestamp in milliseconds, monotonic enough for dashboard dedup.
type Alert struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SupervisionAlertData wraps an Alert for supervisor dashboards.
type SupervisionAlertData struct {
	Alert Alert `json:"alert"`
}

// NotificationData is surfaced as a user-visible toast by clients.
type NotificationData struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// SpyData confirms a spy session start/stop to the initiating supervisor.
type SpyData struct {
	AgentID      int64  `json:"agentId"`
	SupervisorID int64  `json:"supervisorId"`
	Timestamp    string `json:"timestamp"`
}
