package risk

import (
	"testing"
	"time"
)

func istDate(year int, month time.Month, day, hour, minute int) time.Time {
	loc := time.FixedZone("IST", 5*3600+1800)
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func TestDetectSession(t *testing.T) {
	m := NewMarketHours(Config{MarketOpen: "09:15", MarketClose: "15:30", MarketHolidays: []string{"2025-03-14"}}, time.FixedZone("IST", 5*3600+1800))

	tests := []struct {
		name string
		at   time.Time
		want Session
	}{
		{"before pre-open", istDate(2025, time.March, 4, 8, 30), SessionClosed},
		{"pre-open", istDate(2025, time.March, 4, 9, 5), SessionPreOpen},
		{"open bell", istDate(2025, time.March, 4, 9, 15), SessionRegular},
		{"mid session", istDate(2025, time.March, 4, 13, 0), SessionRegular},
		{"close bell", istDate(2025, time.March, 4, 15, 30), SessionPostClose},
		{"saturday", istDate(2025, time.March, 8, 11, 0), SessionWeekendHoliday},
		{"configured holiday", istDate(2025, time.March, 14, 11, 0), SessionWeekendHoliday},
		{"republic day", istDate(2024, time.January, 26, 11, 0), SessionWeekendHoliday},
		{"utc input converted", time.Date(2025, time.March, 4, 5, 0, 0, 0, time.UTC), SessionRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.DetectSession(tt.at)
			if got != tt.want {
				t.Fatalf("session mismatch. got=%s want=%s", got, tt.want)
			}
			if m.IsMarketOpen(tt.at) != (tt.want == SessionRegular) {
				t.Fatalf("IsMarketOpen disagrees with session %s", got)
			}
		})
	}
}

func TestNewMarketHoursFallsBackOnBadClock(t *testing.T) {
	m := NewMarketHours(Config{MarketOpen: "9", MarketClose: "25:00"}, nil)
	if m.Open != "09:15" || m.Close != "15:30" {
		t.Fatalf("expected default clocks, got %s-%s", m.Open, m.Close)
	}
	if m.Location == nil {
		t.Fatal("expected market location")
	}
}

func TestSessionClose(t *testing.T) {
	m := DefaultMarketHours()
	at := istDate(2025, time.March, 4, 10, 0)
	closeAt, err := m.SessionClose(at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closeAt.In(m.Location).Hour() != 15 || closeAt.In(m.Location).Minute() != 30 {
		t.Fatalf("unexpected close %v", closeAt)
	}
}
