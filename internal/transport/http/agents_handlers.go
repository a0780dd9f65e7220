package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/presence"
	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
)

// AgentsHandlers serves the agent roster with live presence.
type AgentsHandlers struct {
	store    store.UserStore
	presence *presence.Service
	disp     *relay.Dispatcher
	log      *zerolog.Logger
}

// NewAgentsHandlers creates agents handlers.
func NewAgentsHandlers(st store.UserStore, pres *presence.Service, disp *relay.Dispatcher, logger *zerolog.Logger) *AgentsHandlers {
	return &AgentsHandlers{store: st, presence: pres, disp: disp, log: logger}
}

// AgentView is one roster row.
type AgentView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// StatusRequest is the body of a status change.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListAgents returns all users with their current status.
// GET /api/agents
func (h *AgentsHandlers) ListAgents(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.store.ListUsers(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	statuses, err := h.presence.ListStatuses(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list statuses")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	agents := make([]AgentView, 0, len(users))
	for _, u := range users {
		status, ok := statuses[u.ID]
		if !ok {
			status = store.StatusOffline
		}
		agents = append(agents, AgentView{
			ID:       u.ID,
			Username: u.Username,
			Role:     string(u.Role),
			Status:   status,
		})
	}

	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// UpdateMyStatus is the REST path for a status change; it fans out the
// same agent_status_change frame the ws path does.
// PUT /api/agents/me/status
func (h *AgentsHandlers) UpdateMyStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)

	if err := h.presence.UpdateAgentStatus(ctx, userID, req.Status); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to update status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.disp.Broadcast(ctx, proto.Outbound{
		Type: proto.TypeAgentStatusChange,
		Data: proto.AgentStatusChangeData{
			AgentID:   userID,
			Status:    req.Status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
