package lifecycle

import "github.com/ecoride/ecoride/pkg/models"

// Stage is the lifecycle-local progression of one tracked ride. It is
// finer-grained than the persisted ride status and exists only while the
// ride view is on screen.
type Stage int

const (
	StageFindingDriver Stage = iota
	StageDriverAssigned
	StageDriverArriving
	StageRideStarted
	StageRideCompleted
)

func (s Stage) String() string {
	switch s {
	case StageFindingDriver:
		return "finding_driver"
	case StageDriverAssigned:
		return "driver_assigned"
	case StageDriverArriving:
		return "driver_arriving"
	case StageRideStarted:
		return "ride_started"
	case StageRideCompleted:
		return "ride_completed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageRideCompleted
}

// stageForStatus maps a persisted ride status to the stage the tracker
// should resume at.
func stageForStatus(status models.RideStatus) (Stage, bool) {
	switch status {
	case models.RideStatusPending:
		return StageFindingDriver, true
	case models.RideStatusAccepted:
		return StageDriverAssigned, true
	case models.RideStatusInProgress:
		return StageRideStarted, true
	case models.RideStatusCompleted:
		return StageRideCompleted, true
	default:
		return 0, false
	}
}

// statusForStage maps a stage transition to the coarser persisted status,
// when the transition changes it.
func statusForStage(stage Stage) (models.RideStatus, bool) {
	switch stage {
	case StageDriverAssigned:
		return models.RideStatusAccepted, true
	case StageRideStarted:
		return models.RideStatusInProgress, true
	case StageRideCompleted:
		return models.RideStatusCompleted, true
	default:
		return "", false
	}
}
