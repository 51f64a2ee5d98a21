package market

import (
	"fmt"
	"time"

	"github.com/Tonic56/coinfolio/lib/errs"
)

// Interval names a lookback/sampling configuration for history queries.
type Interval string

const (
	Day         Interval = "d1"
	FiveDays    Interval = "d5"
	Month       Interval = "m1"
	ThreeMonths Interval = "m3"
	Year        Interval = "y1"
	FiveYears   Interval = "y5"
	AllTime     Interval = "all"
)

const day = 24 * time.Hour

type Window struct {
	Lookback    time.Duration
	Granularity string
}

var windows = map[Interval]Window{
	Day:         {Lookback: day, Granularity: "m5"},
	FiveDays:    {Lookback: 5 * day, Granularity: "h1"},
	Month:       {Lookback: 30 * day, Granularity: "h6"},
	ThreeMonths: {Lookback: 90 * day, Granularity: "d1"},
	Year:        {Lookback: 365 * day, Granularity: "d1"},
	FiveYears:   {Lookback: 5 * 365 * day, Granularity: "d1"},
	AllTime:     {Lookback: 11 * 365 * day, Granularity: "d1"},
}

// Intervals lists every supported interval, shortest first.
func Intervals() []Interval {
	return []Interval{Day, FiveDays, Month, ThreeMonths, Year, FiveYears, AllTime}
}

func ParseInterval(s string) (Interval, error) {
	i := Interval(s)
	if _, ok := windows[i]; !ok {
		return "", fmt.Errorf("unknown interval %q: %w", s, errs.ErrInvalidInput)
	}
	return i, nil
}

func (i Interval) Window() (Window, bool) {
	w, ok := windows[i]
	return w, ok
}

type Direction string

const (
	Gainers Direction = "gainers"
	Losers  Direction = "losers"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", Gainers:
		return Gainers, nil
	case Losers:
		return Losers, nil
	}
	return "", fmt.Errorf("unknown direction %q: %w", s, errs.ErrInvalidInput)
}
