package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agrosense/cropwatch/internal/model"
)

// Store is the persistence gateway. It exclusively owns the four record
// stores; no other component holds write access to them.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate ensures all four record stores exist. Safe to call repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&model.TelemetryReading{},
		&model.Mission{},
		&model.PlantObservation{},
		&model.Alert{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) InsertTelemetry(ctx context.Context, r *model.TelemetryReading) error {
	if r.RainMM < 0 {
		return &ValidationError{Field: "rain_mm", Reason: "must be >= 0"}
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return &ValidationError{Field: "humidity", Reason: "must be within [0,100]"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "required"}
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

// LatestTelemetry returns the most recently inserted reading or ErrNotFound.
func (s *Store) LatestTelemetry(ctx context.Context) (*model.TelemetryReading, error) {
	var r model.TelemetryReading
	err := s.db.WithContext(ctx).Order("id desc").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest telemetry: %w", err)
	}
	return &r, nil
}

func (s *Store) InsertMission(ctx context.Context, m *model.Mission) error {
	if !m.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", m.Status)}
	}
	if m.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("insert mission: %w", err)
	}
	return nil
}

// LatestMission returns the mission with the most recent date or ErrNotFound.
func (s *Store) LatestMission(ctx context.Context) (*model.Mission, error) {
	var m model.Mission
	err := s.db.WithContext(ctx).Order("date desc").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest mission: %w", err)
	}
	return &m, nil
}

// CreateObservationWithAlert writes one observation and its alert in a single
// transaction. If an alert of the same type already exists for an observation
// with the same photo reference, the existing rows are returned and no new
// rows are written, so redelivered events cannot duplicate an alert.
func (s *Store) CreateObservationWithAlert(ctx context.Context, obs *model.PlantObservation, alertType string, detectedAt time.Time) (*model.Alert, error) {
	if obs.PhotoURL == "" {
		return nil, &ValidationError{Field: "photo_url", Reason: "required"}
	}
	if alertType == "" {
		return nil, &ValidationError{Field: "alert_type", Reason: "required"}
	}
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	var alert model.Alert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reuse an existing observation for the same capture, if any.
		var existing model.PlantObservation
		ferr := tx.Where("photo_url = ?", obs.PhotoURL).First(&existing).Error
		switch {
		case ferr == nil:
			*obs = existing
		case errors.Is(ferr, gorm.ErrRecordNotFound):
			if cerr := tx.Create(obs).Error; cerr != nil {
				return fmt.Errorf("insert observation: %w", cerr)
			}
		default:
			return fmt.Errorf("lookup observation: %w", ferr)
		}

		ferr = tx.Where("plant_id = ? AND alert_type = ?", obs.ID, alertType).First(&alert).Error
		if ferr == nil {
			return nil // invariant: one alert per (plant, type)
		}
		if !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup alert: %w", ferr)
		}

		alert = model.Alert{PlantID: obs.ID, AlertType: alertType, DetectedAt: detectedAt}
		if cerr := tx.Create(&alert).Error; cerr != nil {
			return fmt.Errorf("insert alert: %w", cerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListAlerts returns all alerts ordered by detection time, newest first.
func (s *Store) ListAlerts(ctx context.Context) ([]model.Alert, error) {
	alerts := make([]model.Alert, 0)
	if err := s.db.WithContext(ctx).Order("detected_at desc").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Ping reports whether the underlying database is reachable. Used by /readyz.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
