package telephony

import (
	"strings"
	"testing"
)

func TestRenderTwiMLReject(t *testing.T) {
	xml, err := RenderTwiML(VoiceResult{Action: VoiceActionReject})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if want := "<Reject"; !strings.Contains(xml, want) {
		t.Fatalf("expected %q in xml: %s", want, xml)
	}
}

func TestRenderTwiMLDialNumber(t *testing.T) {
	xml, err := RenderTwiML(VoiceResult{Action: VoiceActionDialNumber, Target: "+15557654321", CallerID: "+15551234567", TimeoutSeconds: 30})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{`<Dial callerId="+15551234567" timeout="30">`, "<Number>+15557654321</Number>"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestRenderTwiMLDialClient(t *testing.T) {
	xml, err := RenderTwiML(VoiceResult{Action: VoiceActionDialClient, Target: "u2"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Client>u2</Client>") {
		t.Fatalf("expected client verb: %s", xml)
	}
}

func TestRenderTwiMLDialRequiresTargetAndCallerID(t *testing.T) {
	if _, err := RenderTwiML(VoiceResult{Action: VoiceActionDialNumber, CallerID: "+15551234567"}); err == nil {
		t.Fatalf("expected error for missing target")
	}
	if _, err := RenderTwiML(VoiceResult{Action: VoiceActionDialNumber, Target: "+15557654321"}); err == nil {
		t.Fatalf("expected error for missing caller id")
	}
}
