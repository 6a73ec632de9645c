package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// ClientConfig holds configuration for the softphone process.
type ClientConfig struct {
	App AppConfig // Port is the local control surface port (CONTROL_PORT).

	// APIBaseURL is the backend REST root (login, validate, voice token).
	APIBaseURL string
	// RelayURL is the websocket endpoint of the voice relay.
	RelayURL string

	// StoreBackend selects where session state is persisted: memory or redis.
	StoreBackend string
	Redis        RedisConfig

	// RingTimeout forces an unanswered inbound call to end. Zero disables it.
	RingTimeout time.Duration

	Permissions PermissionConfig

	LogFile string

	// Optional credentials for unattended login at startup.
	LoginEmail    string
	LoginPassword string
}

type PermissionConfig struct {
	// PhoneStateApplicable is true on platforms that gate telephony state separately.
	PhoneStateApplicable bool
	// RequirePhoneStatePermission makes a phone-state denial abort the call attempt.
	RequirePhoneStatePermission bool
	// Granted lists the permissions the host has already granted (microphone, phone_state).
	Granted []string
}

const defaultRingTimeout = 45 * time.Second

func LoadClient() (ClientConfig, error) {
	c := ClientConfig{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "CONTROL_PORT")

	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE_URL")), "/")
	c.RelayURL = strings.TrimSpace(os.Getenv("RELAY_URL"))

	c.StoreBackend = strings.TrimSpace(os.Getenv("STORE_BACKEND"))
	if c.StoreBackend == "redis" {
		c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
		c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")
	}

	var ringSet bool
	if strings.TrimSpace(os.Getenv("RING_TIMEOUT")) != "" {
		ringSet = true
		c.RingTimeout, parseErrs = optionalDuration(parseErrs, "RING_TIMEOUT")
	}
	if !ringSet {
		c.RingTimeout = defaultRingTimeout
	}

	c.Permissions.PhoneStateApplicable, parseErrs = optionalBool(parseErrs, "PHONE_STATE_APPLICABLE", true)
	c.Permissions.RequirePhoneStatePermission, parseErrs = optionalBool(parseErrs, "REQUIRE_PHONE_STATE_PERMISSION", false)
	for _, p := range strings.Split(os.Getenv("GRANTED_PERMISSIONS"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			c.Permissions.Granted = append(c.Permissions.Granted, p)
		}
	}

	c.LogFile = strings.TrimSpace(os.Getenv("LOG_FILE"))
	c.LoginEmail = strings.TrimSpace(os.Getenv("LOGIN_EMAIL"))
	c.LoginPassword = os.Getenv("LOGIN_PASSWORD")

	if err := joinErrors(parseErrs); err != nil {
		return ClientConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return c, nil
}

// Validate checks required values and fills in defaults.
func (c *ClientConfig) Validate() error {
	var errs []error

	errs = c.App.validate(errs)

	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	} else if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL))
	}
	if c.RelayURL == "" {
		errs = append(errs, errors.New("RELAY_URL is required"))
	} else if u, err := url.Parse(c.RelayURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("RELAY_URL must be a ws(s) URL, got %q", c.RelayURL))
	}

	switch c.StoreBackend {
	case "":
		c.StoreBackend = "memory"
	case "memory":
	case "redis":
		errs = c.Redis.validate(errs)
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, redis, got %q", c.StoreBackend))
	}

	if c.RingTimeout < 0 {
		errs = append(errs, errors.New("RING_TIMEOUT must not be negative"))
	}
	if c.IsProduction() && c.APIBaseURL != "" && strings.HasPrefix(c.APIBaseURL, "http://") {
		errs = append(errs, errors.New("API_BASE_URL must use https in production"))
	}
	if (c.LoginEmail == "") != (c.LoginPassword == "") {
		errs = append(errs, errors.New("LOGIN_EMAIL and LOGIN_PASSWORD must be set together"))
	}

	return joinErrors(errs)
}

func (c ClientConfig) IsProduction() bool {
	return c.App.Env == "production"
}

func (c ClientConfig) HTTPAddr() string {
	// The control surface is local to the device.
	return fmt.Sprintf("127.0.0.1:%d", c.App.Port)
}
