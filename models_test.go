package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayNameFromEmail(t *testing.T) {
	assert.Equal(t, "a", DisplayNameFromEmail("a@b.com"))
	assert.Equal(t, "mario.rossi", DisplayNameFromEmail(" mario.rossi@example.com "))
	assert.Equal(t, "no-at-sign", DisplayNameFromEmail("no-at-sign"))
	assert.Equal(t, "", DisplayNameFromEmail(""))
}

func TestAvatarURLFor(t *testing.T) {
	assert.Equal(t, "https://ui-avatars.com/api/?background=random&name=Anna+Rossi",
		AvatarURLFor(DefaultAvatarServiceURL, "Anna Rossi"))
	assert.Equal(t, "https://avatars.example.com/?size=64&background=random&name=a",
		AvatarURLFor("https://avatars.example.com/?size=64", "a"))
	assert.Equal(t, "", AvatarURLFor("", "a"))
	assert.Equal(t, "", AvatarURLFor(DefaultAvatarServiceURL, ""))
}

func TestIdentityMetadataString(t *testing.T) {
	id := Identity{Metadata: map[string]any{
		MetadataDisplayName: "  Anna ",
		MetadataAvatarURL:   42,
	}}
	assert.Equal(t, "Anna", id.MetadataString(MetadataDisplayName))
	assert.Equal(t, "", id.MetadataString(MetadataAvatarURL))
	assert.Equal(t, "", Identity{}.MetadataString(MetadataDisplayName))
}

func TestProfileRecordHasBadge(t *testing.T) {
	p := &ProfileRecord{Badges: []string{DefaultBadge}}
	assert.True(t, p.HasBadge(DefaultBadge))
	assert.False(t, p.HasBadge("Veteran"))

	var missing *ProfileRecord
	assert.False(t, missing.HasBadge(DefaultBadge))
}

func TestProfileUpdateIsEmpty(t *testing.T) {
	assert.True(t, ProfileUpdate{}.IsEmpty())
	assert.False(t, ProfileUpdate{Bio: StringPtr("")}.IsEmpty())
}

func TestCurrentUserClone(t *testing.T) {
	var nilUser *CurrentUser
	assert.Nil(t, nilUser.clone())

	u := &CurrentUser{ID: "u1", Badges: []string{DefaultBadge}}
	c := u.clone()
	c.Badges[0] = "changed"
	assert.Equal(t, DefaultBadge, u.Badges[0])
}
