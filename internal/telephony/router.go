package telephony

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"voice-softphone/internal/users"
)

const clientPrefix = "client:"

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

type UserLookup interface {
	Lookup(ctx context.Context, id string) (users.User, error)
	LookupByPhoneNumber(ctx context.Context, phone string) (users.User, error)
}

// DirectoryRouter connects calls to other users' devices when the dialed number
// belongs to one of them, and to the PSTN otherwise.
type DirectoryRouter struct {
	Users UserLookup

	// DefaultCallerID is used when the calling user has no number of their own.
	DefaultCallerID string
	DialTimeout     int
}

func (r DirectoryRouter) RouteVoiceCall(ctx context.Context, req VoiceRequest) (VoiceResult, error) {
	if r.Users == nil {
		return VoiceResult{}, errors.New("telephony: user lookup not configured")
	}
	to := NormalizeNumber(req.To)
	if to == "" {
		return VoiceResult{Action: VoiceActionReject}, nil
	}
	timeout := r.DialTimeout
	if timeout <= 0 {
		timeout = 30
	}

	if strings.HasPrefix(to, clientPrefix) {
		return VoiceResult{Action: VoiceActionDialClient, Target: strings.TrimPrefix(to, clientPrefix), TimeoutSeconds: timeout}, nil
	}

	callee, err := r.Users.LookupByPhoneNumber(ctx, to)
	switch {
	case err == nil:
		return VoiceResult{Action: VoiceActionDialClient, Target: callee.ID, TimeoutSeconds: timeout}, nil
	case !errors.Is(err, users.ErrNotFound):
		return VoiceResult{}, err
	}

	if !e164.MatchString(to) {
		return VoiceResult{Action: VoiceActionReject}, nil
	}

	callerID := r.DefaultCallerID
	if id := strings.TrimPrefix(req.From, clientPrefix); id != req.From && id != "" {
		caller, err := r.Users.Lookup(ctx, id)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			return VoiceResult{}, err
		}
		if caller.PhoneNumber != "" {
			callerID = caller.PhoneNumber
		}
	}
	if callerID == "" {
		return VoiceResult{Action: VoiceActionReject}, nil
	}
	return VoiceResult{Action: VoiceActionDialNumber, Target: to, CallerID: callerID, TimeoutSeconds: timeout}, nil
}

// NormalizeNumber strips the punctuation people type into dial pads.
func NormalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, clientPrefix) {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
}
