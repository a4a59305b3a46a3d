package detect

import "errors"

// Thresholds holds every tunable of the detector. The defaults assume a
// roughly constant cadence of six to seven samples per second.
type Thresholds struct {
	BaselineSamples   int     `json:"baseline_samples"`
	OnsetDeviationCM  float64 `json:"onset_deviation_cm"`
	StableDeviationCM float64 `json:"stable_deviation_cm"`
	StabilityWindow   int     `json:"stability_window"`
	StableRequired    int     `json:"stable_required"`
	SampleSpacingCM   float64 `json:"sample_spacing_cm"`
	CautionDepthCM    float64 `json:"caution_depth_cm"`
	DangerousDepthCM  float64 `json:"dangerous_depth_cm"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BaselineSamples:   5,
		OnsetDeviationCM:  5,
		StableDeviationCM: 3,
		StabilityWindow:   6,
		StableRequired:    4,
		SampleSpacingCM:   1.5,
		CautionDepthCM:    5,
		DangerousDepthCM:  10,
	}
}

func (th Thresholds) Validate() error {
	if th.BaselineSamples < 1 {
		return errors.New("baseline_samples must be >= 1")
	}
	if th.OnsetDeviationCM < 0 {
		return errors.New("onset_deviation_cm must be >= 0")
	}
	if th.StableDeviationCM < 0 {
		return errors.New("stable_deviation_cm must be >= 0")
	}
	if th.StabilityWindow < 1 {
		return errors.New("stability_window must be >= 1")
	}
	if th.StableRequired < 1 || th.StableRequired > th.StabilityWindow {
		return errors.New("stable_required must be between 1 and stability_window")
	}
	if th.SampleSpacingCM <= 0 {
		return errors.New("sample_spacing_cm must be > 0")
	}
	if th.CautionDepthCM > th.DangerousDepthCM {
		return errors.New("caution_depth_cm must not exceed dangerous_depth_cm")
	}
	return nil
}
