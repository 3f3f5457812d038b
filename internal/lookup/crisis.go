package lookup

import (
	"slices"
	"strings"
	"time"
)

// Crisis condition labels, in evaluation order.
const (
	ConditionStorm       = "Storm"
	ConditionHeavyRain   = "Heavy Rain"
	ConditionExtremeHeat = "Extreme Heat"
	ConditionExtremeCold = "Extreme Cold"
	ConditionHighWinds   = "High Winds"
	ConditionDustStorm   = "Dust Storm"
)

// forecastTimeLayout matches the dt_txt field of forecast entries.
const forecastTimeLayout = "2006-01-02 15:04:05"

// CrisisRules are the thresholds that flag a forecast entry. Temperatures are
// in degrees Celsius, wind in m/s and rain in mm per 3 hours.
type CrisisRules struct {
	HeavyRainMM     float64
	HeatC           float64
	ColdC           float64
	WindMS          float64
	DustWindMS      float64
	StormConditions []string
	DustConditions  []string
}

// DefaultCrisisRules returns the stock thresholds.
func DefaultCrisisRules() CrisisRules {
	return CrisisRules{
		HeavyRainMM:     20,
		HeatC:           40,
		ColdC:           5,
		WindMS:          20,
		DustWindMS:      10,
		StormConditions: []string{"Thunderstorm", "Tornado", "Squall"},
		DustConditions:  []string{"Dust", "Sand", "Ash"},
	}
}

// CrisisEvent flags one condition at one forecast time.
type CrisisEvent struct {
	Time      string `json:"time"`
	Condition string `json:"condition"`
}

// ForecastEntry is the part of a forecast entry the rules look at.
type ForecastEntry struct {
	Dt    int64  `json:"dt"`
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		ThreeHours float64 `json:"3h"`
	} `json:"rain"`
}

// Evaluate checks every entry against the rules. Several conditions may fire
// for the same entry; they are reported in rule order.
func (r CrisisRules) Evaluate(entries []ForecastEntry) []CrisisEvent {
	events := []CrisisEvent{}
	for i := range entries {
		e := &entries[i]
		at := e.label()
		for _, condition := range r.conditions(e) {
			events = append(events, CrisisEvent{Time: at, Condition: condition})
		}
	}
	return events
}

func (r CrisisRules) conditions(e *ForecastEntry) []string {
	var out []string
	if e.hasWeather(r.StormConditions) {
		out = append(out, ConditionStorm)
	}
	if e.Rain.ThreeHours > r.HeavyRainMM {
		out = append(out, ConditionHeavyRain)
	}
	if e.Main.Temp != nil {
		if *e.Main.Temp > r.HeatC {
			out = append(out, ConditionExtremeHeat)
		}
		if *e.Main.Temp < r.ColdC {
			out = append(out, ConditionExtremeCold)
		}
	}
	if e.Wind.Speed > r.WindMS {
		out = append(out, ConditionHighWinds)
	}
	if e.hasWeather(r.DustConditions) && e.Wind.Speed > r.DustWindMS {
		out = append(out, ConditionDustStorm)
	}
	return out
}

func (e *ForecastEntry) hasWeather(conditions []string) bool {
	for _, w := range e.Weather {
		if slices.ContainsFunc(conditions, func(c string) bool { return strings.EqualFold(c, w.Main) }) {
			return true
		}
	}
	return false
}

// label is the entry's dt_txt, or its unix time rendered the same way.
func (e *ForecastEntry) label() string {
	if e.DtTxt != "" {
		return e.DtTxt
	}
	return time.Unix(e.Dt, 0).UTC().Format(forecastTimeLayout)
}
