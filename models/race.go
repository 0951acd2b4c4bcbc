package models

import "time"

// DataKind is the ingestion-pipeline stage a race or entry row is in.
// The core reads Declared/Preliminary for future races and Finalized for
// training/evaluation.
type DataKind string

const (
	DataKindDeclared    DataKind = "declared"
	DataKindPreliminary DataKind = "preliminary"
	DataKindFinalized   DataKind = "finalized"
)

// Surface identifies the racing surface encoded in a track code.
type Surface string

const (
	SurfaceTurf     Surface = "turf"
	SurfaceDirt     Surface = "dirt"
	SurfaceObstacle Surface = "obstacle"
	SurfaceUnknown  Surface = "unknown"
)

// TrackCondition is the surface-condition ladder used for both the
// per-horse condition-split features and the track adjuster. Ordered worst-to-best is NOT the zero value's intent:
// Good is the baseline condition, the others are progressively wetter/softer.
type TrackCondition string

const (
	ConditionGood          TrackCondition = "good"
	ConditionSlightlyHeavy TrackCondition = "slightly_heavy"
	ConditionHeavy         TrackCondition = "heavy"
	ConditionBad           TrackCondition = "bad"
	ConditionUnknown       TrackCondition = ""
)

// AtLeastSlightlyHeavy reports whether c is wetter than Good, the threshold
// used throughout track-condition adjustment.
func (c TrackCondition) AtLeastSlightlyHeavy() bool {
	switch c {
	case ConditionSlightlyHeavy, ConditionHeavy, ConditionBad:
		return true
	default:
		return false
	}
}

// Race is the immutable race identifier and its fixed metadata.
type Race struct {
	RaceID               string // opaque 16-char key
	MeetYear             int
	MeetMonthDay         int // MMDD packed, matches the store's meet_monthday column
	VenueCode            string
	RaceNumber           int
	DistanceM            int
	TrackCode            string // encodes surface + direction; see Surface()/TurnDirection()
	GradeCode            string
	RaceName             string // official race name, e.g. "有馬記念"; needed for name search
	WeatherCode          string
	SurfaceConditionCode string // condition at race time (recorded post-hoc)
	CurrentConditionCode string // condition as of "now" (read from the condition table)
	DeclaredStart        time.Time
	DataKind             DataKind
}

// Surface decodes the track code's surface component. Track codes in the
// source schema are two digits: the tens digit selects surface family.
func (r Race) Surface() Surface {
	return decodeSurface(r.TrackCode)
}

func decodeSurface(trackCode string) Surface {
	if len(trackCode) == 0 {
		return SurfaceUnknown
	}
	switch trackCode[0] {
	case '1', '2':
		return SurfaceTurf
	case '3', '4':
		return SurfaceDirt
	case '5', '6':
		return SurfaceObstacle
	default:
		return SurfaceUnknown
	}
}

// TurnDirection is right-handed or left-handed, keyed off venue rather than
// track code since direction is a venue property in the source schema.
type TurnDirection string

const (
	TurnRight   TurnDirection = "right"
	TurnLeft    TurnDirection = "left"
	TurnUnknown TurnDirection = ""
)

// rightHandedVenues lists venue codes that run right-handed; every other
// known venue runs left-handed. Mirrors the static venue table the Python
// source keeps in src/db/code_master.py.
var rightHandedVenues = map[string]bool{
	"01": true, "02": true, "06": true, "08": true, "09": true,
}

func TurnDirectionForVenue(venueCode string) TurnDirection {
	if venueCode == "" {
		return TurnUnknown
	}
	if rightHandedVenues[venueCode] {
		return TurnRight
	}
	return TurnLeft
}

// IsSunday reports whether the race's declared start falls on a Sunday,
// the trigger for the bias-snapshot weekend fallback.
func (r Race) IsSunday() bool {
	return r.DeclaredStart.Weekday() == time.Sunday
}
