package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
)

// Profile is a user's public profile. Nil fields were never set.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	FullName  *string   `json:"full_name" db:"full_name"`
	Bio       *string   `json:"bio" db:"bio"`
	Location  *string   `json:"location" db:"location"`
	UpdatedAt time.Time `json:"updated_at" db:"-"`
}

// ProfileUpdate lists the fields to change. Nil fields are left as they are.
type ProfileUpdate struct {
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
	Location *string `json:"location"`
}

// Preferences are a user's dashboard settings. Nil fields were never set.
type Preferences struct {
	ID                     string                `json:"id" db:"id"`
	PreferredTransportMode *emissions.TravelMode `json:"preferred_transport_mode" db:"preferred_transport_mode"`
	CarbonGoalMonthly      *float64              `json:"carbon_goal_monthly" db:"carbon_goal_monthly"`
	NotificationsEnabled   *bool                 `json:"notifications_enabled" db:"notifications_enabled"`
	UnitsSystem            *string               `json:"units_system" db:"units_system"`
	Theme                  *string               `json:"theme" db:"theme"`
	UpdatedAt              time.Time             `json:"updated_at" db:"-"`
}

// PreferencesUpdate lists the preferences to change. Nil fields are left as they are.
type PreferencesUpdate struct {
	PreferredTransportMode *string  `json:"preferred_transport_mode"`
	CarbonGoalMonthly      *float64 `json:"carbon_goal_monthly"`
	NotificationsEnabled   *bool    `json:"notifications_enabled"`
	UnitsSystem            *string  `json:"units_system"`
	Theme                  *string  `json:"theme"`
}

// ProfileStore reads and upserts user_profiles
type ProfileStore struct {
	db *DB
}

type profileRow struct {
	Profile
	UpdatedAtNs int64 `db:"updated_at"`
}

// Get returns the profile for userID, or nil if none has been saved.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*Profile, error) {
	var row profileRow
	err := s.db.observe(ctx, "profiles.get", func(ctx context.Context) error {
		err := s.db.db.GetContext(ctx, &row,
			`SELECT id, full_name, bio, location, updated_at FROM user_profiles WHERE id = ?`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if row.ID == "" {
		return nil, nil
	}
	p := row.Profile
	p.UpdatedAt = time.Unix(0, row.UpdatedAtNs).UTC()
	return &p, nil
}

// Upsert creates or updates the profile for userID and returns the result.
func (s *ProfileStore) Upsert(ctx context.Context, userID string, in ProfileUpdate) (*Profile, error) {
	err := s.db.observe(ctx, "profiles.upsert", func(ctx context.Context) error {
		_, err := s.db.db.ExecContext(ctx, `
			INSERT INTO user_profiles (id, full_name, bio, location, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				full_name  = COALESCE(excluded.full_name, full_name),
				bio        = COALESCE(excluded.bio, bio),
				location   = COALESCE(excluded.location, location),
				updated_at = excluded.updated_at`,
			userID, in.FullName, in.Bio, in.Location, s.db.now().UTC().UnixNano())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return s.Get(ctx, userID)
}

// PreferencesStore reads and upserts user_preferences
type PreferencesStore struct {
	db *DB
}

type preferencesRow struct {
	ID                     string          `db:"id"`
	PreferredTransportMode sql.NullString  `db:"preferred_transport_mode"`
	CarbonGoalMonthly      sql.NullFloat64 `db:"carbon_goal_monthly"`
	NotificationsEnabled   sql.NullBool    `db:"notifications_enabled"`
	UnitsSystem            sql.NullString  `db:"units_system"`
	Theme                  sql.NullString  `db:"theme"`
	UpdatedAt              int64           `db:"updated_at"`
}

func (r preferencesRow) toPreferences() *Preferences {
	p := &Preferences{ID: r.ID, UpdatedAt: time.Unix(0, r.UpdatedAt).UTC()}
	if r.PreferredTransportMode.Valid {
		m := emissions.TravelMode(r.PreferredTransportMode.String)
		p.PreferredTransportMode = &m
	}
	if r.CarbonGoalMonthly.Valid {
		p.CarbonGoalMonthly = &r.CarbonGoalMonthly.Float64
	}
	if r.NotificationsEnabled.Valid {
		p.NotificationsEnabled = &r.NotificationsEnabled.Bool
	}
	if r.UnitsSystem.Valid {
		p.UnitsSystem = &r.UnitsSystem.String
	}
	if r.Theme.Valid {
		p.Theme = &r.Theme.String
	}
	return p
}

// Get returns the preferences for userID, or nil if none have been saved.
func (s *PreferencesStore) Get(ctx context.Context, userID string) (*Preferences, error) {
	var row preferencesRow
	found := true
	err := s.db.observe(ctx, "preferences.get", func(ctx context.Context) error {
		err := s.db.db.GetContext(ctx, &row, `
			SELECT id, preferred_transport_mode, carbon_goal_monthly,
				notifications_enabled, units_system, theme, updated_at
			FROM user_preferences WHERE id = ?`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.toPreferences(), nil
}

// Upsert creates or updates the preferences for userID and returns the result.
// A preferred transport mode must be one of the supported travel modes.
func (s *PreferencesStore) Upsert(ctx context.Context, userID string, in PreferencesUpdate) (*Preferences, error) {
	var mode *string
	if in.PreferredTransportMode != nil {
		m, err := emissions.ParseMode(*in.PreferredTransportMode)
		if err != nil {
			return nil, err
		}
		v := string(m)
		mode = &v
	}
	if in.CarbonGoalMonthly != nil && *in.CarbonGoalMonthly < 0 {
		return nil, fmt.Errorf("%w: carbon goal must not be negative", emissions.ErrInvalidInput)
	}

	err := s.db.observe(ctx, "preferences.upsert", func(ctx context.Context) error {
		_, err := s.db.db.ExecContext(ctx, `
			INSERT INTO user_preferences (id, preferred_transport_mode, carbon_goal_monthly,
				notifications_enabled, units_system, theme, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				preferred_transport_mode = COALESCE(excluded.preferred_transport_mode, preferred_transport_mode),
				carbon_goal_monthly      = COALESCE(excluded.carbon_goal_monthly, carbon_goal_monthly),
				notifications_enabled    = COALESCE(excluded.notifications_enabled, notifications_enabled),
				units_system             = COALESCE(excluded.units_system, units_system),
				theme                    = COALESCE(excluded.theme, theme),
				updated_at               = excluded.updated_at`,
			userID, mode, in.CarbonGoalMonthly, in.NotificationsEnabled, in.UnitsSystem, in.Theme,
			s.db.now().UTC().UnixNano())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("saving preferences: %w", err)
	}
	return s.Get(ctx, userID)
}
