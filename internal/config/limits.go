package config

import (
	"os"
	"time"
)

// Limits groups the coordinator's windows and caps.  Defaults match
// the production values: five minutes between tickets, one second
// between messages, 500 characters per message and 1 MiB per decoded
// attachment.  ActiveUserThreshold decides who counts as "active" in
// the statistics endpoint.
type Limits struct {
	TicketCooldown      time.Duration
	MessageCooldown     time.Duration
	MaxMessageLength    int
	MaxAttachmentBytes  int
	ActiveUserThreshold time.Duration
}

// LoadLimits reads the limit configuration from environment variables,
// falling back to the defaults when variables are unset or malformed.
func LoadLimits() Limits {
	l := Limits{
		TicketCooldown:      envDur("TICKET_COOLDOWN", 5*time.Minute),
		MessageCooldown:     envDur("MESSAGE_COOLDOWN", time.Second),
		MaxMessageLength:    envInt("MAX_MESSAGE_LENGTH", 500),
		MaxAttachmentBytes:  envInt("MAX_ATTACHMENT_BYTES", 1<<20),
		ActiveUserThreshold: envDur("ACTIVE_USER_THRESHOLD", 5*time.Minute),
	}
	if l.MaxMessageLength < 1 {
		l.MaxMessageLength = 500
	}
	if l.MaxAttachmentBytes < 1 {
		l.MaxAttachmentBytes = 1 << 20
	}
	return l
}

// RoleCacheConfig controls the TTL cache in front of role-membership
// lookups.  A short TTL keeps repeated requests from hammering the
// gateway while an admin demotion still takes effect quickly.
type RoleCacheConfig struct {
	TTL    time.Duration
	Prefix string
}

func LoadRoleCacheConfig() RoleCacheConfig {
	c := RoleCacheConfig{
		TTL:    envDur("ROLE_CACHE_TTL", time.Minute),
		Prefix: getenv("ROLE_CACHE_PREFIX", "roles"),
	}
	if c.TTL <= 0 {
		c.TTL = time.Minute
	}
	return c
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n := atoi(v); n != 0 {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
