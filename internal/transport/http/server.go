package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/auth"
	"github.com/Jobcall26/jobdial-server/internal/config"
	"github.com/Jobcall26/jobdial-server/internal/presence"
	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/store"
	"github.com/Jobcall26/jobdial-server/internal/telephony"
)

// Deps collects everything the HTTP layer serves.
type Deps struct {
	Auth      *auth.Service
	Store     store.Store
	Presence  *presence.Service
	Registry  *relay.Registry
	Dispatch  *relay.Dispatcher
	Telephony *telephony.Service
}

// NewServer builds the HTTP server: REST API plus the /ws relay endpoint.
func NewServer(cfg config.Config, deps Deps, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := NewAPIHandlers(deps.Auth, logger)
	agents := NewAgentsHandlers(deps.Store, deps.Presence, deps.Dispatch, logger)
	campaigns := NewCampaignHandlers(deps.Store, logger)
	supervision := NewSupervisionHandlers(deps.Store, deps.Telephony, deps.Dispatch, logger)

	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Login)

	authed := router.Group("/api", AuthMiddleware(deps.Auth, logger))
	authed.GET("/agents", agents.ListAgents)
	authed.PUT("/agents/me/status", agents.UpdateMyStatus)
	authed.GET("/campaigns", campaigns.ListCampaigns)
	authed.POST("/campaigns", campaigns.CreateCampaign)
	authed.GET("/contacts", campaigns.ListContacts)
	authed.POST("/contacts", campaigns.CreateContact)
	authed.GET("/calls", campaigns.ListCalls)

	sup := authed.Group("", RequireSupervisor(logger))
	sup.POST("/calls/simulate", supervision.SimulateCall)
	sup.POST("/calls/:id/end", supervision.EndCall)
	sup.POST("/supervision/:agentID/spy", supervision.StartSpy)
	sup.DELETE("/supervision/:agentID/spy", supervision.StopSpy)

	wsHandler := NewWSHandler(relay.SessionDeps{
		Registry:   deps.Registry,
		Dispatcher: deps.Dispatch,
		Status:     deps.Presence,
		Directory:  deps.Store,
		Tokens:     deps.Auth,
	}, cfg.AuthTimeout, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
