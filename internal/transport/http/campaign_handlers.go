package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/store"
)

// CampaignHandlers serves campaign, contact, and call-history endpoints.
type CampaignHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewCampaignHandlers creates campaign handlers.
func NewCampaignHandlers(st store.Store, logger *zerolog.Logger) *CampaignHandlers {
	return &CampaignHandlers{store: st, log: logger}
}

// CampaignRequest is the body for creating a campaign.
type CampaignRequest struct {
	Name   string `json:"name" binding:"required"`
	Script string `json:"script"`
}

// ContactRequest is the body for creating a contact.
type ContactRequest struct {
	CampaignID int64  `json:"campaignId" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
}

// ListCampaigns returns all campaigns.
// GET /api/campaigns
func (h *CampaignHandlers) ListCampaigns(c *gin.Context) {
	campaigns, err := h.store.ListCampaigns(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list campaigns")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// CreateCampaign creates a campaign.
// POST /api/campaigns
func (h *CampaignHandlers) CreateCampaign(c *gin.Context) {
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	campaign, err := h.store.CreateCampaign(c.Request.Context(), req.Name, req.Script)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create campaign")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// ListContacts returns contacts of a campaign.
// GET /api/contacts?campaign=<id>
func (h *CampaignHandlers) ListContacts(c *gin.Context) {
	campaignID, err := strconv.ParseInt(c.Query("campaign"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid campaign id"})
		return
	}

	contacts, err := h.store.ListContacts(c.Request.Context(), campaignID)
	if err != nil {
		h.log.Error().Err(err).Int64("campaign_id", campaignID).Msg("failed to list contacts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// CreateContact adds a contact to a campaign.
// POST /api/contacts
func (h *CampaignHandlers) CreateContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetCampaign(ctx, req.CampaignID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "campaign not found"})
			return
		}
		h.log.Error().Err(err).Int64("campaign_id", req.CampaignID).Msg("failed to load campaign")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	contact, err := h.store.CreateContact(ctx, req.CampaignID, req.Name, req.Phone)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create contact")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// ListCalls returns recent call history.
// GET /api/calls?limit=<n>
func (h *CampaignHandlers) ListCalls(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	calls, err := h.store.ListCalls(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list calls")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}
