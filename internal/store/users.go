package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dilli-gateway/internal/database"
	"dilli-gateway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no user has the requested hash.
var ErrNotFound = errors.New("user not found")

// Seed carries what one inbound message tells us about its sender.
type Seed struct {
	WaIDHash    string
	Last4       string
	DisplayName string
	Locale      string
	// MessageID is the upstream message id; empty disables duplicate detection.
	MessageID string
	SeenAt    time.Time
}

// Result describes the outcome of Ingest.
type Result struct {
	User      *models.WAUser
	Created   bool
	Duplicate bool
}

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Ingest records one inbound message in a single transaction: it claims the
// message id, makes sure the sender's user row exists and touches last_seen.
// A message id that was already claimed yields Result{Duplicate: true} and
// writes nothing.
func (s *UserStore) Ingest(ctx context.Context, seed Seed) (Result, error) {
	if seed.SeenAt.IsZero() {
		seed.SeenAt = time.Now().UTC()
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if seed.MessageID != "" {
			claimed, err := claimMessage(tx, seed)
			if err != nil {
				return err
			}
			if !claimed {
				res.Duplicate = true
				return nil
			}
		}

		user, created, err := ensureUser(tx, seed)
		if err != nil {
			return err
		}
		if !created {
			if err := touch(tx, seed.WaIDHash, seed.SeenAt); err != nil {
				return err
			}
			user.LastSeen = &seed.SeenAt
		}
		res.User = user
		res.Created = created
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ingest message: %w", err)
	}
	return res, nil
}

// EnsureUser creates the user for seed.WaIDHash if it does not exist yet and
// returns the stored row. Creation is a single conditional insert, so
// concurrent first messages from one sender cannot produce two rows.
func (s *UserStore) EnsureUser(ctx context.Context, seed Seed) (*models.WAUser, bool, error) {
	if seed.SeenAt.IsZero() {
		seed.SeenAt = time.Now().UTC()
	}
	user, created, err := ensureUser(s.db.WithContext(ctx), seed)
	if err != nil {
		return nil, false, fmt.Errorf("ensure user: %w", err)
	}
	return user, created, nil
}

// TouchLastSeen moves last_seen forward for an existing user.
func (s *UserStore) TouchLastSeen(ctx context.Context, waIDHash string, at time.Time) error {
	if err := touch(s.db.WithContext(ctx), waIDHash, at); err != nil {
		return fmt.Errorf("touch last_seen: %w", err)
	}
	return nil
}

func (s *UserStore) FindByHash(ctx context.Context, waIDHash string) (*models.WAUser, error) {
	var user models.WAUser
	err := s.db.WithContext(ctx).Where("wa_id_hash = ?", waIDHash).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db)
}

func claimMessage(tx *gorm.DB, seed Seed) (bool, error) {
	rec := models.ProcessedMessage{MessageID: seed.MessageID, WaIDHash: seed.WaIDHash}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(&rec)
	if result.Error != nil {
		return false, fmt.Errorf("claim message %s: %w", seed.MessageID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func ensureUser(tx *gorm.DB, seed Seed) (*models.WAUser, bool, error) {
	seenAt := seed.SeenAt
	candidate := models.WAUser{
		WaIDHash:    seed.WaIDHash,
		DisplayName: truncate(seed.DisplayName, 255),
		Locale:      seed.Locale,
		ConsentTS:   &seenAt,
		LastSeen:    &seenAt,
		Role:        models.RoleUser,
		IsActive:    true,
	}
	if seed.Last4 != "" {
		last4 := seed.Last4
		candidate.WaLast4 = &last4
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wa_id_hash"}},
		DoNothing: true,
	}).Create(&candidate)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return &candidate, true, nil
	}

	var existing models.WAUser
	if err := tx.Where("wa_id_hash = ?", seed.WaIDHash).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func touch(tx *gorm.DB, waIDHash string, at time.Time) error {
	result := tx.Model(&models.WAUser{}).
		Where("wa_id_hash = ?", waIDHash).
		Update("last_seen", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
