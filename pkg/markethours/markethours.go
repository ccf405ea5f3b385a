package markethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opentrade/tradefleet/pkg/types"
)

// Margin is applied on both sides of the trading day: workers come up five
// minutes before pre-open and stay five minutes past post-close.
const Margin = 5 * time.Minute

// Window is a closed UTC interval during which an exchange worker should run.
// A zero Window (Empty == true) means the exchange is closed all day.
type Window struct {
	Start time.Time
	End   time.Time
	Empty bool
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	if w.Empty {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// ForExchange computes the market-hours window for the exchange's local date
// at nowUTC. Saturdays and Sundays in the exchange's timezone yield an empty
// window. The result is expressed in UTC.
func ForExchange(ex *types.Exchange, nowUTC time.Time) (Window, error) {
	loc, err := time.LoadLocation(ex.Timezone)
	if err != nil {
		return Window{}, fmt.Errorf("invalid timezone %q for exchange %s: %w", ex.Timezone, ex.ID, err)
	}

	local := nowUTC.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Window{Empty: true}, nil
	}

	openH, openM, err := parseWallClock(ex.PreOpenTime)
	if err != nil {
		return Window{}, fmt.Errorf("exchange %s pre_open_time: %w", ex.ID, err)
	}
	closeH, closeM, err := parseWallClock(ex.PostCloseTime)
	if err != nil {
		return Window{}, fmt.Errorf("exchange %s post_close_time: %w", ex.ID, err)
	}

	y, m, d := local.Date()
	preOpen := time.Date(y, m, d, openH, openM, 0, 0, loc)
	postClose := time.Date(y, m, d, closeH, closeM, 0, 0, loc)

	return Window{
		Start: preOpen.Add(-Margin).UTC(),
		End:   postClose.Add(Margin).UTC(),
	}, nil
}

// ShouldBeRunning reports whether the exchange's worker should be running at
// nowUTC. Pure function of the exchange record and the instant; callers
// inject the clock.
func ShouldBeRunning(ex *types.Exchange, nowUTC time.Time) (bool, error) {
	w, err := ForExchange(ex, nowUTC)
	if err != nil {
		return false, err
	}
	return w.Contains(nowUTC), nil
}

// parseWallClock parses "HH:MM" local wall-clock strings
func parseWallClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed wall-clock time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed minute in %q", s)
	}
	return hour, minute, nil
}
