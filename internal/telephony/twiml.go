package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is rendered by hand from the few verbs we need; no provider SDK.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	Number   string   `xml:"Number,omitempty"`
	Client   string   `xml:"Client,omitempty"`
}

// RenderTwiML maps a VoiceResult to TwiML.
func RenderTwiML(res VoiceResult) (string, error) {
	var r twimlResponse

	switch res.Action {
	case VoiceActionReject:
		r.Verbs = append(r.Verbs, twimlReject{Reason: "rejected"})
	case VoiceActionHangup:
		r.Verbs = append(r.Verbs, twimlHangup{})
	case VoiceActionDialNumber:
		if strings.TrimSpace(res.Target) == "" {
			return "", errors.New("telephony: target required for dial")
		}
		if res.CallerID == "" {
			return "", errors.New("telephony: caller id required for PSTN dial")
		}
		r.Verbs = append(r.Verbs, twimlDial{CallerID: res.CallerID, Timeout: res.TimeoutSeconds, Number: res.Target})
	case VoiceActionDialClient:
		if strings.TrimSpace(res.Target) == "" {
			return "", errors.New("telephony: target required for dial")
		}
		r.Verbs = append(r.Verbs, twimlDial{Timeout: res.TimeoutSeconds, Client: res.Target})
	default:
		return "", errors.New("telephony: unknown voice action")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
