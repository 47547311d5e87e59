package model

// PlantObservation is a plant-health data point produced by the ingestion
// pipeline from one drone image. MissionID is nullable: image events may
// arrive outside any tracked mission.
type PlantObservation struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	MissionID    *uint    `json:"mission_id" gorm:"index"`
	Mission      *Mission `json:"-" gorm:"foreignKey:MissionID"`
	GpsLat       float64  `json:"gps_lat"`
	GpsLong      float64  `json:"gps_long"`
	HealthStatus string   `json:"health_status" gorm:"size:50"`
	ProblemType  string   `json:"problem_type" gorm:"size:100"`
	PhotoURL     string   `json:"photo_url"`
}

func (PlantObservation) TableName() string { return "plants" }
