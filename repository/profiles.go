package repository

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ProfileModel is the Bun model for garage profiles.
type ProfileModel struct {
	bun.BaseModel `bun:"table:garage_profiles"`

	ID             string    `bun:"id,pk"`
	DisplayName    string    `bun:"display_name,notnull"`
	AvatarURL      string    `bun:"avatar_url,notnull"`
	Bio            string    `bun:"bio,notnull"`
	Location       string    `bun:"location,notnull"`
	Badges         []string  `bun:"badges,type:text,notnull"`
	FollowersCount int       `bun:"followers_count,notnull"`
	FollowingCount int       `bun:"following_count,notnull"`
	EventsCount    int       `bun:"events_count,notnull"`
	RoadsCount     int       `bun:"roads_count,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

// Profiles implements auth.ProfileRepository using Bun.
type Profiles struct {
	db  bun.IDB
	now func() time.Time
}

var _ auth.ProfileRepository = (*Profiles)(nil)

// NewProfiles creates a new repository.
func NewProfiles(db bun.IDB) *Profiles {
	return &Profiles{db: db, now: time.Now}
}

// WithClock overrides the clock used for timestamps.
func (p *Profiles) WithClock(now func() time.Time) *Profiles {
	if now != nil {
		p.now = now
	}
	return p
}

// GetProfile implements auth.ProfileRepository.
func (p *Profiles) GetProfile(ctx context.Context, userID string) (*auth.ProfileRecord, error) {
	var model ProfileModel
	err := p.db.NewSelect().
		Model(&model).
		Where("id = ?", strings.TrimSpace(userID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, auth.ErrProfileNotFound
		}
		return nil, err
	}
	return toProfileRecord(&model), nil
}

// CreateProfile implements auth.ProfileRepository. The insert is a no-op
// when a row with the same id exists, and auth.ErrProfileExists is
// returned, so two concurrent creations store exactly one row.
func (p *Profiles) CreateProfile(ctx context.Context, record *auth.ProfileRecord) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return goerrors.New("profile id is required", goerrors.CategoryValidation).
			WithTextCode(auth.TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	model := fromProfileRecord(record)
	now := p.now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = model.CreatedAt
	}

	res, err := p.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrProfileExists
	}
	return nil
}

// UpdateProfile implements auth.ProfileRepository. Only the fields set in
// fields are written.
func (p *Profiles) UpdateProfile(ctx context.Context, userID string, fields auth.ProfileUpdate) error {
	q := p.db.NewUpdate().
		Model((*ProfileModel)(nil)).
		Set("updated_at = ?", p.now())

	if fields.DisplayName != nil {
		q = q.Set("display_name = ?", *fields.DisplayName)
	}
	if fields.AvatarURL != nil {
		q = q.Set("avatar_url = ?", *fields.AvatarURL)
	}
	if fields.Bio != nil {
		q = q.Set("bio = ?", *fields.Bio)
	}
	if fields.Location != nil {
		q = q.Set("location = ?", *fields.Location)
	}

	res, err := q.Where("id = ?", strings.TrimSpace(userID)).Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrProfileNotFound
	}
	return nil
}

func toProfileRecord(m *ProfileModel) *auth.ProfileRecord {
	return &auth.ProfileRecord{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		AvatarURL:   m.AvatarURL,
		Bio:         m.Bio,
		Location:    m.Location,
		Badges:      append([]string{}, m.Badges...),
		Stats: auth.ProfileStats{
			Followers: m.FollowersCount,
			Following: m.FollowingCount,
			Events:    m.EventsCount,
			Roads:     m.RoadsCount,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromProfileRecord(r *auth.ProfileRecord) *ProfileModel {
	badges := append([]string{}, r.Badges...)
	return &ProfileModel{
		ID:             strings.TrimSpace(r.ID),
		DisplayName:    r.DisplayName,
		AvatarURL:      r.AvatarURL,
		Bio:            r.Bio,
		Location:       r.Location,
		Badges:         badges,
		FollowersCount: r.Stats.Followers,
		FollowingCount: r.Stats.Following,
		EventsCount:    r.Stats.Events,
		RoadsCount:     r.Stats.Roads,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
