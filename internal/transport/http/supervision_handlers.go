package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
	"github.com/Jobcall26/jobdial-server/internal/telephony"
)

// SupervisionHandlers drives the mock telephony provider and spy sessions.
// These REST triggers call straight into the dispatcher, in process.
type SupervisionHandlers struct {
	store     store.Store
	telephony *telephony.Service
	disp      *relay.Dispatcher
	log       *zerolog.Logger
}

// NewSupervisionHandlers creates supervision handlers.
func NewSupervisionHandlers(st store.Store, tel *telephony.Service, disp *relay.Dispatcher, logger *zerolog.Logger) *SupervisionHandlers {
	return &SupervisionHandlers{store: st, telephony: tel, disp: disp, log: logger}
}

// SimulateCallRequest picks the agent and contact for a mock call.
type SimulateCallRequest struct {
	AgentID   int64 `json:"agentId" binding:"required"`
	ContactID int64 `json:"contactId" binding:"required"`
}

// EndCallRequest carries the disposition of a finished call.
type EndCallRequest struct {
	Outcome string `json:"outcome"`
}

// SimulateCall starts a mock call and pushes the incoming event to the
// agent's softphone.
// POST /api/calls/simulate
func (h *SupervisionHandlers) SimulateCall(c *gin.Context) {
	var req SimulateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	agent, err := h.store.GetUserByID(ctx, req.AgentID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "agent not found"})
		return
	}
	contact, err := h.store.GetContact(ctx, req.ContactID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "contact not found"})
		return
	}
	campaign, err := h.store.GetCampaign(ctx, contact.CampaignID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "campaign not found"})
		return
	}

	call, err := h.telephony.Simulate(ctx, agent, contact, campaign)
	if err != nil {
		h.log.Error().Err(err).Int64("agent_id", agent.ID).Msg("failed to simulate call")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"call": call.Payload})
}

// EndCall terminates a mock call, records history, and pushes the ended
// event to the agent.
// POST /api/calls/:id/end
func (h *SupervisionHandlers) EndCall(c *gin.Context) {
	var req EndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	outcome := store.CallOutcome(req.Outcome)
	if outcome == "" {
		outcome = store.OutcomeAnswered
	}

	record, err := h.telephony.End(c.Request.Context(), c.Param("id"), outcome)
	if err != nil {
		if errors.Is(err, telephony.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "call not found"})
			return
		}
		h.log.Error().Err(err).Str("call_id", c.Param("id")).Msg("failed to end call")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"call": record})
}

// StartSpy opens a spy session on an agent: supervisors get an alert, the
// initiator gets a spy_started confirmation.
// POST /api/supervision/:agentID/spy
func (h *SupervisionHandlers) StartSpy(c *gin.Context) {
	h.spyEvent(c, proto.TypeSpyStarted, "spy session started on agent %d")
}

// StopSpy closes a spy session.
// DELETE /api/supervision/:agentID/spy
func (h *SupervisionHandlers) StopSpy(c *gin.Context) {
	h.spyEvent(c, proto.TypeSpyStopped, "spy session stopped on agent %d")
}

func (h *SupervisionHandlers) spyEvent(c *gin.Context, eventType, msgFormat string) {
	agentID, err := strconv.ParseInt(c.Param("agentID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid agent id"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUserByID(ctx, agentID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "agent not found"})
		return
	}

	supervisorID := currentUserID(c)

	h.disp.NotifySupervisors(ctx, "warning", fmt.Sprintf(msgFormat, agentID))
	h.disp.NotifyUser(ctx, supervisorID, proto.Outbound{
		Type: eventType,
		Data: proto.SpyData{
			AgentID:      agentID,
			SupervisorID: supervisorID,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		},
	})

	h.log.Info().Int64("agent_id", agentID).Int64("supervisor_id", supervisorID).Str("event", eventType).Msg("spy event")
	c.JSON(http.StatusOK, gin.H{"agentId": agentID, "event": eventType})
}
