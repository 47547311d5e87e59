// Package weather holds the flight-eligibility policy. The decision is a
// pure function of the newest telemetry reading so it can be evaluated on
// demand without touching the store.
package weather

import "github.com/agrosense/cropwatch/internal/model"

const ReasonPrecipitation = "precipitation detected"

type Decision struct {
	CanTakeOff bool   `json:"canTakeOff"`
	Reason     string `json:"reason,omitempty"`
}

// Evaluate decides flight eligibility from one reading. Any measured
// precipitation grounds the drone.
func Evaluate(r *model.TelemetryReading) Decision {
	if r.RainMM > 0 {
		return Decision{CanTakeOff: false, Reason: ReasonPrecipitation}
	}
	return Decision{CanTakeOff: true}
}
