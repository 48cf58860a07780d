package risk

import (
	"fmt"
	"time"

	"botexecutor/src/utils"
)

// ----- session labels -----

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionPreOpen        Session = "pre_open"
	SessionRegular        Session = "regular"
	SessionPostClose      Session = "post_close"
	SessionClosed         Session = "closed"

	preOpenMinutes = 15
)

// MarketHours is the cash/derivatives session of an exchange in its own
// time zone. Open and Close are "HH:MM".
type MarketHours struct {
	Open     string
	Close    string
	Location *time.Location
	holidays map[string]struct{}
}

// NewMarketHours builds market hours from config, falling back to the
// 09:15-15:30 IST session when a clock is malformed.
func NewMarketHours(config Config, loc *time.Location) MarketHours {
	if loc == nil {
		loc = utils.LoadLocation(utils.DefaultMarketTimezone)
	}
	openClock, closeClock := config.MarketOpen, config.MarketClose
	if _, _, err := utils.ParseClock(openClock); err != nil {
		openClock = "09:15"
	}
	if _, _, err := utils.ParseClock(closeClock); err != nil {
		closeClock = "15:30"
	}

	extra := make(map[string]struct{}, len(config.MarketHolidays))
	for _, d := range config.MarketHolidays {
		extra[d] = struct{}{}
	}
	return MarketHours{Open: openClock, Close: closeClock, Location: loc, holidays: extra}
}

// DefaultMarketHours is the NSE session.
func DefaultMarketHours() MarketHours {
	return NewMarketHours(Config{MarketOpen: "09:15", MarketClose: "15:30"}, nil)
}

// ----- public API -----

// IsMarketOpen reports whether now falls inside the regular session.
func (m MarketHours) IsMarketOpen(now time.Time) bool {
	return m.DetectSession(now) == SessionRegular
}

// DetectSession labels now against the exchange calendar.
func (m MarketHours) DetectSession(now time.Time) Session {
	local := now.In(m.Location)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday || m.IsHoliday(local) {
		return SessionWeekendHoliday
	}

	openAt, err := utils.TodayAt(local, m.Open, m.Location)
	if err != nil {
		return SessionClosed
	}
	closeAt, err := utils.TodayAt(local, m.Close, m.Location)
	if err != nil {
		return SessionClosed
	}

	switch {
	case local.Before(openAt.Add(-preOpenMinutes * time.Minute)):
		return SessionClosed
	case local.Before(openAt):
		return SessionPreOpen
	case local.Before(closeAt):
		return SessionRegular
	default:
		return SessionPostClose
	}
}

// SessionClose returns today's close in the market location.
func (m MarketHours) SessionClose(now time.Time) (time.Time, error) {
	closeAt, err := utils.TodayAt(now, m.Close, m.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("market close: %w", err)
	}
	return closeAt, nil
}

// IsHoliday checks fixed-date national holidays plus configured exchange holidays.
func (m MarketHours) IsHoliday(t time.Time) bool {
	local := t.In(m.Location)
	if _, ok := m.holidays[local.Format("2006-01-02")]; ok {
		return true
	}
	return isFixedHoliday(local)
}

func isFixedHoliday(t time.Time) bool {
	year := t.Year()

	holidays := []time.Time{
		time.Date(year, time.January, 26, 0, 0, 0, 0, t.Location()),  // Republic Day
		time.Date(year, time.May, 1, 0, 0, 0, 0, t.Location()),       // Maharashtra Day
		time.Date(year, time.August, 15, 0, 0, 0, 0, t.Location()),   // Independence Day
		time.Date(year, time.October, 2, 0, 0, 0, 0, t.Location()),   // Gandhi Jayanti
		time.Date(year, time.December, 25, 0, 0, 0, 0, t.Location()), // Christmas
	}
	return isDateAmong(t, holidays)
}

// isDateAmong checks if the given date matches any date in the list.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
