package itis

import (
	"errors"
	"fmt"
)

// ErrInvalidCodeForCategory is returned when a requested code is not in the
// category's whitelist.
var ErrInvalidCodeForCategory = errors.New("itis code not valid for message category")

// categoryRule is the per-category build rule: a whitelist of requestable
// codes plus optional banner codes prepended to the payload. Keeping this a
// data table (instead of one type per category) makes the cancel/banner
// behavior visible in one place.
type categoryRule struct {
	banner       Code
	cancelBanner Code
	codes        []Code
}

var categoryRules = map[Category]categoryRule{
	CategoryInformation: {
		codes: []Code{
			VehicleTravelingWrongWay,
			StoppedTraffic,
			StopAndGoTraffic,
			SlowTraffic,
			LongQueues,
			SpeedLimit,
			Pothole,
			Bumps,
		},
	},
	CategoryAlert: {
		banner:       Alert,
		cancelBanner: AlertCanceled,
		codes: []Code{
			BlackIce,
			Ice,
			WhiteOut,
			Fog,
			DamagingHail,
			FreezingRain,
			VisibilityReduced,
			StrongWinds,
			Blizzard,
			HeavySnow,
			DangerOfHydroplaning,
			SnowOnRoadway,
			RainAndSnowMixed,
			Snow,
			HeavyRain,
		},
	},
	CategoryWarning: {
		banner:       Warning,
		cancelBanner: WarningCanceled,
		codes:        severeWeatherCodes,
	},
	CategoryWatch: {
		banner:       Watch,
		cancelBanner: WatchCanceled,
		codes:        severeWeatherCodes,
	},
}

// Warning and Watch share the same whitelist.
var severeWeatherCodes = []Code{
	Tornado,
	SevereWeather,
	WinterStorm,
	IceStorm,
	Thunderstorms,
}

func (r categoryRule) allows(code Code) bool {
	for _, c := range r.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Build returns the ordered payload for announcing code under category:
// the category banner (if any) followed by the code itself.
func Build(category Category, code Code) ([]Code, error) {
	rule, ok := categoryRules[category]
	if !ok {
		return nil, fmt.Errorf("unknown message category %q", category)
	}
	if !rule.allows(code) {
		return nil, fmt.Errorf("%w: %s for %s", ErrInvalidCodeForCategory, code.Label(), category)
	}
	if rule.banner == None {
		return []Code{code}, nil
	}
	return []Code{rule.banner, code}, nil
}

// BuildCancel returns the ordered payload announcing the cancellation of a
// previously broadcast code: the cancel banner followed by the code.
//
// The Information category has no cancel banner; canceling an information
// broadcast is done by deleting it from the device, so its "cancel" payload
// is just the code itself.
func BuildCancel(category Category, code Code) ([]Code, error) {
	rule, ok := categoryRules[category]
	if !ok {
		return nil, fmt.Errorf("unknown message category %q", category)
	}
	if !rule.allows(code) {
		return nil, fmt.Errorf("%w: %s for %s", ErrInvalidCodeForCategory, code.Label(), category)
	}
	if rule.cancelBanner == None {
		return []Code{code}, nil
	}
	return []Code{rule.cancelBanner, code}, nil
}

// Payload converts codes to the wire representation.
func Payload(codes []Code) []int {
	out := make([]int, len(codes))
	for i, c := range codes {
		out[i] = int(c)
	}
	return out
}
