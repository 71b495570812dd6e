package itis

import "fmt"

// CodeInfo describes one requestable ITIS code.
//
// FireOnce marks codes whose broadcasts self-expire after their delivery
// duration instead of being kept alive indefinitely.
type CodeInfo struct {
	Label    string
	Code     Code
	FireOnce bool
	Unit     DurationUnit
	Category Category
}

var registry = map[Code]CodeInfo{
	VehicleTravelingWrongWay: {Label: "Vehicle Traveling Wrong Way", Code: VehicleTravelingWrongWay, FireOnce: true, Unit: UnitMinutes, Category: CategoryInformation},
	StoppedTraffic:           {Label: "Stopped Traffic", Code: StoppedTraffic, FireOnce: true, Unit: UnitMinutes, Category: CategoryInformation},
	StopAndGoTraffic:         {Label: "Stop And Go Traffic", Code: StopAndGoTraffic, FireOnce: true, Unit: UnitMinutes, Category: CategoryInformation},
	SlowTraffic:              {Label: "Slow Traffic", Code: SlowTraffic, Category: CategoryInformation},
	LongQueues:               {Label: "Long Queues", Code: LongQueues, Category: CategoryInformation},
	SpeedLimit:               {Label: "Speed Limit", Code: SpeedLimit, Category: CategoryInformation},
	Pothole:                  {Label: "Pothole", Code: Pothole, FireOnce: true, Unit: UnitDays, Category: CategoryInformation},
	Bumps:                    {Label: "Bumps", Code: Bumps, FireOnce: true, Unit: UnitDays, Category: CategoryInformation},

	BlackIce:             {Label: "Black Ice", Code: BlackIce, Category: CategoryAlert},
	Ice:                  {Label: "Ice", Code: Ice, Category: CategoryAlert},
	WhiteOut:             {Label: "White Out", Code: WhiteOut, Category: CategoryAlert},
	Fog:                  {Label: "Fog", Code: Fog, Category: CategoryAlert},
	DamagingHail:         {Label: "Damaging Hail", Code: DamagingHail, Category: CategoryAlert},
	FreezingRain:         {Label: "Freezing Rain", Code: FreezingRain, Category: CategoryAlert},
	VisibilityReduced:    {Label: "Visibility Reduced", Code: VisibilityReduced, Category: CategoryAlert},
	StrongWinds:          {Label: "Strong Winds", Code: StrongWinds, Category: CategoryAlert},
	Blizzard:             {Label: "Blizzard", Code: Blizzard, Category: CategoryAlert},
	HeavySnow:            {Label: "Heavy Snow", Code: HeavySnow, Category: CategoryAlert},
	DangerOfHydroplaning: {Label: "Danger Of Hydroplaning", Code: DangerOfHydroplaning, Category: CategoryAlert},
	SnowOnRoadway:        {Label: "Snow On Roadway", Code: SnowOnRoadway, Category: CategoryAlert},
	RainAndSnowMixed:     {Label: "Rain And Snow Mixed", Code: RainAndSnowMixed, Category: CategoryAlert},
	Snow:                 {Label: "Snow", Code: Snow, Category: CategoryAlert},
	HeavyRain:            {Label: "Heavy Rain", Code: HeavyRain, Category: CategoryAlert},

	// Warning is the primary category for these; they are also valid as Watch.
	Tornado:       {Label: "Tornado", Code: Tornado, Category: CategoryWarning},
	SevereWeather: {Label: "Severe Weather", Code: SevereWeather, Category: CategoryWarning},
	WinterStorm:   {Label: "Winter Storm", Code: WinterStorm, Category: CategoryWarning},
	IceStorm:      {Label: "Ice Storm", Code: IceStorm, Category: CategoryWarning},
	Thunderstorms: {Label: "Thunderstorms", Code: Thunderstorms, Category: CategoryWarning},

	Alert:           {Label: "Alert", Code: Alert},
	Warning:         {Label: "Warning", Code: Warning},
	Watch:           {Label: "Watch", Code: Watch},
	AlertCanceled:   {Label: "Alert Canceled", Code: AlertCanceled},
	WarningCanceled: {Label: "Warning Canceled", Code: WarningCanceled},
	WatchCanceled:   {Label: "Watch Canceled", Code: WatchCanceled},
}

// names maps the compact request spelling (as sent by automation rules and
// the control API) to a code.
var names = map[string]Code{
	"VehicleTravelingWrongWay": VehicleTravelingWrongWay,
	"StoppedTraffic":           StoppedTraffic,
	"StopAndGoTraffic":         StopAndGoTraffic,
	"SlowTraffic":              SlowTraffic,
	"LongQueues":               LongQueues,
	"SpeedLimit":               SpeedLimit,
	"Pothole":                  Pothole,
	"Bumps":                    Bumps,
	"BlackIce":                 BlackIce,
	"Ice":                      Ice,
	"WhiteOut":                 WhiteOut,
	"Fog":                      Fog,
	"DamagingHail":             DamagingHail,
	"FreezingRain":             FreezingRain,
	"VisibilityReduced":        VisibilityReduced,
	"StrongWinds":              StrongWinds,
	"Blizzard":                 Blizzard,
	"HeavySnow":                HeavySnow,
	"DangerOfHydroplaning":     DangerOfHydroplaning,
	"SnowOnRoadway":            SnowOnRoadway,
	"RainAndSnowMixed":         RainAndSnowMixed,
	"Snow":                     Snow,
	"HeavyRain":                HeavyRain,
	"Tornado":                  Tornado,
	"SevereWeather":            SevereWeather,
	"WinterStorm":              WinterStorm,
	"IceStorm":                 IceStorm,
	"Thunderstorms":            Thunderstorms,
}

// Lookup returns the registry entry for a code.
func Lookup(c Code) (CodeInfo, bool) {
	info, ok := registry[c]
	return info, ok
}

// ParseCode resolves the compact request spelling of a code
// (e.g. "SlowTraffic").
func ParseCode(name string) (Code, error) {
	if c, ok := names[name]; ok {
		return c, nil
	}
	return None, fmt.Errorf("unknown itis code %q", name)
}

// ParseCategory resolves a category name; the empty string means Information.
func ParseCategory(name string) (Category, error) {
	switch name {
	case "", string(CategoryInformation):
		return CategoryInformation, nil
	case string(CategoryAlert):
		return CategoryAlert, nil
	case string(CategoryWarning):
		return CategoryWarning, nil
	case string(CategoryWatch):
		return CategoryWatch, nil
	}
	return CategoryInformation, fmt.Errorf("unknown message category %q", name)
}

// ParseDurationUnit resolves a duration unit name; anything unrecognized
// falls back to minutes.
func ParseDurationUnit(name string) DurationUnit {
	switch name {
	case string(UnitHours):
		return UnitHours
	case string(UnitDays):
		return UnitDays
	case string(UnitWeeks):
		return UnitWeeks
	}
	return UnitMinutes
}

// CategoryOf returns the primary category a code belongs to.
// Codes absent from the registry default to Information.
func CategoryOf(c Code) Category {
	if info, ok := registry[c]; ok && info.Category != "" {
		return info.Category
	}
	return CategoryInformation
}

// FireOnce reports whether broadcasts of this code self-expire on duration.
func FireOnce(c Code) bool {
	info, ok := registry[c]
	return ok && info.FireOnce
}
