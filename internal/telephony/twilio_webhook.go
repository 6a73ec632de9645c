package telephony

import (
	"net/http"
	"strings"
	"time"
)

// ParseTwilioVoiceRequest reads the subset of voice webhook fields we route on.
// Twilio posts application/x-www-form-urlencoded.
// Ref: https://www.twilio.com/docs/voice/twiml#request-parameters
func ParseTwilioVoiceRequest(r *http.Request, now time.Time) (VoiceRequest, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceRequest{}, err
	}
	return VoiceRequest{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Direction:  r.PostFormValue("Direction"),
		CallStatus: r.PostFormValue("CallStatus"),
		APIVersion: r.PostFormValue("ApiVersion"),
		OccurredAt: now,
	}, nil
}
