package telephony

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voice-softphone/pkg/logger"
)

// VoiceWebhookHandler converts the Twilio webhook to internal types,
// delegates the decision to the Router and writes TwiML.
type VoiceWebhookHandler struct {
	Router Router
	Now    func() time.Time
}

func (h VoiceWebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Router == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "voice router not configured"})
		return
	}

	req, err := ParseTwilioVoiceRequest(c.Request, h.Now().UTC())
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	res, err := h.Router.RouteVoiceCall(c.Request.Context(), req)
	if err != nil {
		log.Error("voice routing failed", "call_sid", req.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
		return
	}
	log.Info("voice call routed", "call_sid", req.CallSid, "action", res.Action, "target", res.Target)

	twiml, err := RenderTwiML(res)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}

	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
