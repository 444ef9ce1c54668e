package auth

import (
	"net/url"
	"strings"
	"time"
)

// SessionEvent is the kind of change reported by a SessionStore.
type SessionEvent string

const (
	SessionEventInitial        SessionEvent = "INITIAL_SESSION"
	SessionEventSignedIn       SessionEvent = "SIGNED_IN"
	SessionEventSignedOut      SessionEvent = "SIGNED_OUT"
	SessionEventTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
	SessionEventUserUpdated    SessionEvent = "USER_UPDATED"
)

// Metadata keys understood on an Identity.
const (
	MetadataDisplayName = "display_name"
	MetadataAvatarURL   = "avatar_url"
)

// Identity is the account record held by the SessionStore.
type Identity struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// MetadataString returns a trimmed string value from the metadata bag.
func (i Identity) MetadataString(key string) string {
	if i.Metadata == nil {
		return ""
	}
	v, ok := i.Metadata[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Session is an established session. AccessToken is empty for sessions
// returned by a registration that did not authenticate.
type Session struct {
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	User        Identity  `json:"user"`
}

// ProfileStats are the public counters of a profile.
type ProfileStats struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
	Events    int `json:"events"`
	Roads     int `json:"roads"`
}

// ProfileRecord is the persisted profile row, keyed by the identity id.
type ProfileRecord struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	AvatarURL   string       `json:"avatar_url"`
	Bio         string       `json:"bio"`
	Location    string       `json:"location"`
	Badges      []string     `json:"badges"`
	Stats       ProfileStats `json:"stats"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasBadge reports whether badge is in the profile badge set.
func (p *ProfileRecord) HasBadge(badge string) bool {
	if p == nil {
		return false
	}
	for _, b := range p.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Location    *string `json:"location,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u ProfileUpdate) IsEmpty() bool {
	return u.DisplayName == nil && u.AvatarURL == nil && u.Bio == nil && u.Location == nil
}

// StringPtr is a convenience for building a ProfileUpdate.
func StringPtr(s string) *string {
	return &s
}

// CurrentUser is the in-memory projection of Identity and ProfileRecord.
type CurrentUser struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	AvatarURL   string       `json:"avatar_url"`
	Bio         string       `json:"bio"`
	Location    string       `json:"location"`
	Badges      []string     `json:"badges,omitempty"`
	Stats       ProfileStats `json:"stats"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (u *CurrentUser) clone() *CurrentUser {
	if u == nil {
		return nil
	}
	c := *u
	if u.Badges != nil {
		c.Badges = append([]string(nil), u.Badges...)
	}
	return &c
}

// Readiness tells dependent views whether they can stop waiting.
type Readiness string

const (
	ReadinessResolving Readiness = "resolving"
	ReadinessReady     Readiness = "ready"
)

// State is the snapshot published to dependent views.
type State struct {
	Readiness Readiness    `json:"readiness"`
	User      *CurrentUser `json:"user,omitempty"`
	Loading   bool         `json:"loading"`
}

// IsReady reports whether the service reached Ready.
func (s State) IsReady() bool {
	return s.Readiness == ReadinessReady
}

// IsSignedIn reports whether a CurrentUser is held.
func (s State) IsSignedIn() bool {
	return s.User != nil
}

// Destination identifies a landing area for navigation signals.
type Destination string

const (
	DestinationAuthenticated Destination = "authenticated"
	DestinationPublic        Destination = "public"
)

// NavigationSignal asks dependent views to move to a landing area.
type NavigationSignal struct {
	Destination Destination `json:"destination"`
	Path        string      `json:"path"`
	Reason      string      `json:"reason"`
}

// NoticeLevel is the severity of a Notice.
type NoticeLevel string

const (
	NoticeError   NoticeLevel = "error"
	NoticeSuccess NoticeLevel = "success"
)

// Notice is a user facing message.
type Notice struct {
	Level    NoticeLevel `json:"level"`
	Message  string      `json:"message"`
	TextCode string      `json:"text_code,omitempty"`
}

// DisplayNameFromEmail is the fallback display name for identities without
// a name: the email local part.
func DisplayNameFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

// AvatarURLFor derives a generated avatar URL from a display name.
func AvatarURLFor(serviceURL, name string) string {
	if serviceURL == "" || name == "" {
		return ""
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("background", "random")
	sep := "?"
	if strings.Contains(serviceURL, "?") {
		sep = "&"
	}
	return serviceURL + sep + q.Encode()
}
