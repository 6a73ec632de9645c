package main

import (
	"voice-softphone/internal/auth"
	"voice-softphone/internal/httpapi"
	"voice-softphone/internal/relay"
	"voice-softphone/internal/telephony"
	"voice-softphone/internal/users"
	"voice-softphone/pkg/utils"

	"github.com/gin-gonic/gin"
)

type deps struct {
	auth     *auth.Manager
	users    *users.Service
	hub      *relay.Hub
	callerID string
	probes   []utils.Probe
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	h := httpapi.Handlers{Auth: d.auth, Users: d.users, Probes: d.probes}
	r.GET("/readyz", h.Ready)

	r.POST("/login", h.Login)
	// The admin shell signs in with the same credentials store.
	r.POST("/admin/login", h.Login)
	r.GET("/validate", h.Validate)
	r.GET("/twilio/token", auth.RequireSessionToken(d.auth), h.VoiceToken)

	// Devices register here with their voice token.
	r.GET("/voice/relay", auth.RequireToken(d.auth, auth.TokenTypeVoice), d.hub.Handle)

	// Provider webhook (public).
	// NOTE: This endpoint should be protected by Twilio signature validation in production.
	voice := telephony.VoiceWebhookHandler{
		Router: telephony.DirectoryRouter{Users: d.users, DefaultCallerID: d.callerID},
	}
	r.POST("/twilio/voice", voice.HandleVoice)
}
