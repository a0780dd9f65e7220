package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
)

// Dispatcher delivers frames to registered connections. All delivery is
// best effort: no acknowledgement, no retry, no queueing for offline
// targets. A failed write is logged and dropped, never escalated.
type Dispatcher struct {
	reg *Registry
	log *zerolog.Logger
}

// NewDispatcher builds a dispatcher over the given registry.
func NewDispatcher(reg *Registry, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: logger}
}

// NotifyUser writes one frame to the connection for userID, if present.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID int64, frame proto.Outbound) {
	conn, ok := d.reg.Lookup(userID)
	if !ok {
		d.log.Debug().Int64("user_id", userID).Str("type", frame.Type).Msg("notify: user not connected, dropping")
		return
	}
	if err := conn.Send(ctx, frame); err != nil {
		d.log.Warn().Err(err).Int64("user_id", userID).Str("type", frame.Type).Msg("notify: write failed, dropping")
	}
}

// Broadcast writes one frame to every registered connection, including
// the originator of whatever triggered it.
func (d *Dispatcher) Broadcast(ctx context.Context, frame proto.Outbound) {
	for _, conn := range d.reg.Snapshot() {
		if err := conn.Send(ctx, frame); err != nil {
			d.log.Warn().Err(err).Int64("user_id", conn.UserID).Str("type", frame.Type).Msg("broadcast: write failed, dropping")
		}
	}
}

// BroadcastToSupervisors writes one frame to every connection whose
// authenticated role supervises.
func (d *Dispatcher) BroadcastToSupervisors(ctx context.Context, frame proto.Outbound) {
	for _, conn := range d.reg.Snapshot() {
		if !conn.Role.Supervises() {
			continue
		}
		if err := conn.Send(ctx, frame); err != nil {
			d.log.Warn().Err(err).Int64("user_id", conn.UserID).Str("type", frame.Type).Msg("supervisor broadcast: write failed, dropping")
		}
	}
}

// NotifySupervisors wraps a supervision event in an alert envelope and
// fans it out to supervisor connections.
func (d *Dispatcher) NotifySupervisors(ctx context.Context, alertType, message string) {
	now := time.Now()
	d.BroadcastToSupervisors(ctx, proto.Outbound{
		Type: proto.TypeSupervisionAlert,
		Data: proto.SupervisionAlertData{
			Alert: proto.Alert{
				ID:        now.UnixMilli(),
				Type:      alertType,
				Message:   message,
				Timestamp: now.UTC().Format(time.RFC3339),
			},
		},
	})
}

// NotifyCallEvent pushes a call event to one agent's softphone.
func (d *Dispatcher) NotifyCallEvent(ctx context.Context, userID int64, event string, call any) {
	d.NotifyUser(ctx, userID, proto.Outbound{
		Type: proto.TypeCallEvent,
		Data: proto.CallEventData{Event: event, Call: call},
	})
}
