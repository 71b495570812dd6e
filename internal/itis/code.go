package itis

import "strconv"

// Code is a standardized SAE J2540 integer identifying a traveler-information
// phrase.
type Code int

const (
	None Code = 0

	// Banner and cancel-banner codes. These are never requested directly;
	// the builder prepends them based on the message category.
	Alert           Code = 6916
	Warning         Code = 6915
	Watch           Code = 6914
	AlertCanceled   Code = 7036
	WarningCanceled Code = 7034
	WatchCanceled   Code = 7035

	// Additional cancellation phrases kept for wire compatibility with
	// devices that report them back.
	StrongWindsHaveEased      Code = 5246
	VisibilityImproved        Code = 5500
	PavementConditionsCleared Code = 6015

	// Information codes.
	VehicleTravelingWrongWay Code = 1793
	StoppedTraffic           Code = 257
	StopAndGoTraffic         Code = 258
	SlowTraffic              Code = 259
	LongQueues               Code = 262
	SpeedLimit               Code = 268
	Pothole                  Code = 1300
	Bumps                    Code = 1053

	// Alert codes.
	BlackIce             Code = 5908
	Ice                  Code = 5906
	WhiteOut             Code = 5384
	Fog                  Code = 5378
	DamagingHail         Code = 4879
	FreezingRain         Code = 5911
	VisibilityReduced    Code = 5383
	StrongWinds          Code = 5127
	Blizzard             Code = 4866
	HeavySnow            Code = 4867
	DangerOfHydroplaning Code = 5894
	SnowOnRoadway        Code = 5916
	RainAndSnowMixed     Code = 4877
	Snow                 Code = 4868
	HeavyRain            Code = 4884

	// Warning / watch codes.
	Tornado       Code = 5121
	SevereWeather Code = 4865
	WinterStorm   Code = 4871
	IceStorm      Code = 4875
	Thunderstorms Code = 4881
)

// Label returns the human-readable phrase, e.g. "Slow Traffic". Unknown
// codes render the bare number.
func (c Code) Label() string {
	if info, ok := Lookup(c); ok {
		return info.Label
	}
	return strconv.Itoa(int(c))
}

// Category groups codes by how they are announced to road users.
type Category string

const (
	CategoryInformation Category = "Information"
	CategoryAlert       Category = "Alert"
	CategoryWarning     Category = "Warning"
	CategoryWatch       Category = "Watch"
)

// DurationUnit scales a request's numeric duration.
type DurationUnit string

const (
	UnitNone    DurationUnit = ""
	UnitMinutes DurationUnit = "Minutes"
	UnitHours   DurationUnit = "Hours"
	UnitDays    DurationUnit = "Days"
	UnitWeeks   DurationUnit = "Weeks"
)
