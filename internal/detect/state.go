package detect

import "fmt"

// State is the detector's position in the scan lifecycle.
type State int

const (
	StateAwaitingBaseline State = iota
	StateIdle
	StateInPothole
	StateResolved
)

var stateNames = [...]string{
	StateAwaitingBaseline: "awaiting_baseline",
	StateIdle:             "idle",
	StateInPothole:        "in_pothole",
	StateResolved:         "resolved",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown detector state %q", b)
}

// Tier is the safety classification derived from pothole depth.
type Tier int

const (
	TierSafe Tier = iota
	TierCaution
	TierDangerous
)

var tierNames = [...]string{
	TierSafe:      "safe",
	TierCaution:   "caution",
	TierDangerous: "dangerous",
}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	for i, name := range tierNames {
		if name == string(b) {
			*t = Tier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown safety tier %q", b)
}

// ParseTier maps a tier name back to its value.
func ParseTier(s string) (Tier, error) {
	var t Tier
	err := t.UnmarshalText([]byte(s))
	return t, err
}

// Classify buckets a depth in centimeters. Both boundaries are exclusive, so
// a depth exactly at the caution threshold is still safe.
func Classify(depth float64, th Thresholds) Tier {
	switch {
	case depth > th.DangerousDepthCM:
		return TierDangerous
	case depth > th.CautionDepthCM:
		return TierCaution
	default:
		return TierSafe
	}
}
