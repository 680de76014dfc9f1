package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// profileRow is the durable representation. Slices and the window are
// stored as JSON so the row stays self-contained and the read-modify-write
// cycle is a single fetch plus a single upsert.
type profileRow struct {
	UserID            string `gorm:"primaryKey;size:64"`
	AvgAmount         float64
	StdAmount         float64
	TotalTransactions int
	KnownCountries    string `gorm:"type:jsonb"`
	KnownDevices      string `gorm:"type:jsonb"`
	TypicalHours      string `gorm:"type:jsonb"`
	LastLatitude      *float64
	LastLongitude     *float64
	LastTransactionAt *time.Time
	FraudCount        int
	Window            string `gorm:"type:jsonb"`
	UpdatedAt         time.Time
}

func (profileRow) TableName() string { return "user_profiles" }

// PostgresStore persists profiles with GORM. It is the record of truth;
// any cache in front of it is an optimization only.
type PostgresStore struct {
	db    *gorm.DB
	locks stripedLocks
}

// NewPostgresStore migrates the schema and returns the store.
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&profileRow{}); err != nil {
		return nil, fmt.Errorf("migrate user_profiles: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var row profileRow
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewUserProfile(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	p, _, err := rowToProfile(&row)
	return p, err
}

func (s *PostgresStore) Window(ctx context.Context, userID string) ([]models.TransactionSummary, error) {
	var row profileRow
	err := s.db.WithContext(ctx).Select("user_id", "window").First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load window %s: %w", userID, err)
	}
	return decodeWindow(row.Window)
}

func (s *PostgresStore) Apply(ctx context.Context, txn *models.Transaction) error {
	mu := s.locks.lock(txn.UserID)
	defer mu.Unlock()

	var (
		p      *models.UserProfile
		window []models.TransactionSummary
	)
	var row profileRow
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", txn.UserID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		p = models.NewUserProfile(txn.UserID)
	case err != nil:
		return fmt.Errorf("load profile %s: %w", txn.UserID, err)
	default:
		if p, window, err = rowToProfile(&row); err != nil {
			return err
		}
	}

	updated, window := ApplyTransaction(p, window, txn)
	out, err := profileToRow(updated, window)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, UpdateAll: true}).
		Create(out).Error
	if err != nil {
		return fmt.Errorf("save profile %s: %w", txn.UserID, err)
	}
	return nil
}

func rowToProfile(row *profileRow) (*models.UserProfile, []models.TransactionSummary, error) {
	p := &models.UserProfile{
		UserID:            row.UserID,
		AvgAmount:         row.AvgAmount,
		StdAmount:         row.StdAmount,
		TotalTransactions: row.TotalTransactions,
		LastLatitude:      row.LastLatitude,
		LastLongitude:     row.LastLongitude,
		LastTransactionAt: row.LastTransactionAt,
		FraudCount:        row.FraudCount,
	}
	if err := json.Unmarshal([]byte(row.KnownCountries), &p.KnownCountries); err != nil {
		return nil, nil, fmt.Errorf("decode known_countries for %s: %w", row.UserID, err)
	}
	if err := json.Unmarshal([]byte(row.KnownDevices), &p.KnownDevices); err != nil {
		return nil, nil, fmt.Errorf("decode known_devices for %s: %w", row.UserID, err)
	}
	if err := json.Unmarshal([]byte(row.TypicalHours), &p.TypicalHours); err != nil {
		return nil, nil, fmt.Errorf("decode typical_hours for %s: %w", row.UserID, err)
	}
	window, err := decodeWindow(row.Window)
	if err != nil {
		return nil, nil, err
	}
	return p, window, nil
}

func profileToRow(p *models.UserProfile, window []models.TransactionSummary) (*profileRow, error) {
	countries, err := json.Marshal(p.KnownCountries)
	if err != nil {
		return nil, fmt.Errorf("encode known_countries: %w", err)
	}
	devices, err := json.Marshal(p.KnownDevices)
	if err != nil {
		return nil, fmt.Errorf("encode known_devices: %w", err)
	}
	hours, err := json.Marshal(p.TypicalHours)
	if err != nil {
		return nil, fmt.Errorf("encode typical_hours: %w", err)
	}
	windowJSON, err := json.Marshal(window)
	if err != nil {
		return nil, fmt.Errorf("encode window: %w", err)
	}
	return &profileRow{
		UserID:            p.UserID,
		AvgAmount:         p.AvgAmount,
		StdAmount:         p.StdAmount,
		TotalTransactions: p.TotalTransactions,
		KnownCountries:    string(countries),
		KnownDevices:      string(devices),
		TypicalHours:      string(hours),
		LastLatitude:      p.LastLatitude,
		LastLongitude:     p.LastLongitude,
		LastTransactionAt: p.LastTransactionAt,
		FraudCount:        p.FraudCount,
		Window:            string(windowJSON),
	}, nil
}

func decodeWindow(raw string) ([]models.TransactionSummary, error) {
	if raw == "" {
		return nil, nil
	}
	var window []models.TransactionSummary
	if err := json.Unmarshal([]byte(raw), &window); err != nil {
		return nil, fmt.Errorf("decode window: %w", err)
	}
	return window, nil
}
