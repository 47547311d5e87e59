package model

import "time"

type MissionStatus string

const (
	MissionPending    MissionStatus = "pending"
	MissionInProgress MissionStatus = "in-progress"
	MissionCompleted  MissionStatus = "completed"
	MissionAborted    MissionStatus = "aborted"
)

// Mission is one drone flight record. Missions are written by the external
// mission-control process; this service only migrates the schema and reads
// the latest row.
type Mission struct {
	ID                uint          `json:"id" gorm:"primaryKey"`
	DroneID           int           `json:"drone_id"`
	Status            MissionStatus `json:"status" gorm:"size:50"`
	WeatherConditions string        `json:"weather_conditions" gorm:"size:100"`
	Date              time.Time     `json:"date"`
}

func (Mission) TableName() string { return "missions" }

func (s MissionStatus) Valid() bool {
	switch s {
	case MissionPending, MissionInProgress, MissionCompleted, MissionAborted:
		return true
	}
	return false
}
