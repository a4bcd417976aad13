package chatgateway

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds connection settings for the chat gateway service.
// The gateway speaks the upstream chat platforms' wire protocols; this
// service only ever talks to the gateway over HTTP.
type Config struct {
	BaseURL       string
	Token         string
	ResumeTimeout time.Duration
	LoginTimeout  time.Duration
	FetchTimeout  time.Duration
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("chatgateway: base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("chatgateway: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("chatgateway: base URL must be http or https")
	}
	if c.ResumeTimeout <= 0 {
		c.ResumeTimeout = 15 * time.Second
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 45 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	return nil
}
