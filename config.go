package auth

import "time"

// Config holds lifecycle options
type Config interface {
	GetReadinessTimeout() time.Duration
	GetNavigationDelay() time.Duration
	GetAuthenticatedLanding() string
	GetPublicLanding() string
	GetDefaultBadge() string
	GetMinPasswordLength() int
	GetAvatarServiceURL() string
}

const (
	DefaultReadinessTimeout     = 3 * time.Second
	DefaultNavigationDelay      = 100 * time.Millisecond
	DefaultAuthenticatedLanding = "/feed"
	DefaultPublicLanding        = "/"
	DefaultBadge                = "Nuovo Membro"
	DefaultMinPasswordLength    = 6
	DefaultAvatarServiceURL     = "https://ui-avatars.com/api/"
)

// StaticConfig is a plain Config implementation. Zero fields fall back to
// the package defaults.
type StaticConfig struct {
	ReadinessTimeout     time.Duration
	NavigationDelay      time.Duration
	AuthenticatedLanding string
	PublicLanding        string
	Badge                string
	MinPasswordLength    int
	AvatarServiceURL     string
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return StaticConfig{}
}

func (c StaticConfig) GetReadinessTimeout() time.Duration {
	if c.ReadinessTimeout <= 0 {
		return DefaultReadinessTimeout
	}
	return c.ReadinessTimeout
}

func (c StaticConfig) GetNavigationDelay() time.Duration {
	if c.NavigationDelay <= 0 {
		return DefaultNavigationDelay
	}
	return c.NavigationDelay
}

func (c StaticConfig) GetAuthenticatedLanding() string {
	if c.AuthenticatedLanding == "" {
		return DefaultAuthenticatedLanding
	}
	return c.AuthenticatedLanding
}

func (c StaticConfig) GetPublicLanding() string {
	if c.PublicLanding == "" {
		return DefaultPublicLanding
	}
	return c.PublicLanding
}

func (c StaticConfig) GetDefaultBadge() string {
	if c.Badge == "" {
		return DefaultBadge
	}
	return c.Badge
}

func (c StaticConfig) GetMinPasswordLength() int {
	if c.MinPasswordLength <= 0 {
		return DefaultMinPasswordLength
	}
	return c.MinPasswordLength
}

func (c StaticConfig) GetAvatarServiceURL() string {
	if c.AvatarServiceURL == "" {
		return DefaultAvatarServiceURL
	}
	return c.AvatarServiceURL
}
