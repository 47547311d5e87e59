package messages

import "time"

// ImageEvent is the payload published on the drone image topic when a new
// capture is available for analysis.
type ImageEvent struct {
	Image     string    `json:"image"`
	GpsLat    float64   `json:"gps_lat"`
	GpsLong   float64   `json:"gps_long"`
	MissionID *uint     `json:"mission_id,omitempty"`
	TakenAt   time.Time `json:"taken_at,omitempty"`
}

// Verdict is the classifier's answer for one image reference.
type Verdict struct {
	IsAlert     bool   `json:"isAlert"`
	ProblemType string `json:"problemType,omitempty"`
}
