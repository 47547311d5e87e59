package model

import "time"

// Alert is a flagged anomaly derived from a positive classification verdict.
// Immutable once written; at most one alert exists per (plant, alert type).
type Alert struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	PlantID    uint              `json:"plant_id" gorm:"index"`
	Plant      *PlantObservation `json:"-" gorm:"foreignKey:PlantID"`
	AlertType  string            `json:"alert_type" gorm:"size:100"`
	DetectedAt time.Time         `json:"detected_at" gorm:"index"`
}

func (Alert) TableName() string { return "alerts" }
