package model

import "time"

// TelemetryReading is one environmental sensor sample. Rows are append-only:
// nothing in the system updates or deletes a reading once stored.
type TelemetryReading struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	RainMM      float64   `json:"rain_mm" gorm:"column:rain_mm"`
	Timestamp   time.Time `json:"timestamp"`
}

func (TelemetryReading) TableName() string { return "sensor_data" }
