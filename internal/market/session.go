package market

import (
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET SESSION TRACKER - Wall-clock → session phase
// ═══════════════════════════════════════════════════════════════════════════════
//
// Daily phase boundaries (exchange-local, America/New_York):
//   pre-market  04:00
//   opening     09:30 (first 5 minutes of the regular session)
//   regular     09:35
//   close       16:00 (13:00 on early-close days)
//   after-hours until 20:00
//
// ═══════════════════════════════════════════════════════════════════════════════

// Session is the current phase of the trading day.
type Session int

const (
	SessionClosed Session = iota
	SessionPreMarket
	SessionOpening
	SessionRegular
	SessionAfterHours
)

func (s Session) String() string {
	switch s {
	case SessionPreMarket:
		return "pre_market"
	case SessionOpening:
		return "opening"
	case SessionRegular:
		return "regular"
	case SessionAfterHours:
		return "after_hours"
	default:
		return "closed"
	}
}

// IsMarketHours reports whether the regular session (including the opening
// window) is in progress.
func (s Session) IsMarketHours() bool {
	return s == SessionOpening || s == SessionRegular
}

// openingWindow is how long the opening phase lasts after the 09:30 bell.
// Matches the opening-range lock duration.
const openingWindow = 5 * time.Minute

// Calendar supplies the exchange holiday and early-close schedule.
type Calendar struct {
	loc         *time.Location
	holidays    map[string]bool // "2006-01-02" keys
	earlyCloses map[string]bool
}

// NewCalendar creates a calendar for the exchange timezone. Falls back to a
// fixed UTC-5 zone if the tz database is unavailable.
func NewCalendar() *Calendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*3600)
	}
	return &Calendar{
		loc:         loc,
		holidays:    make(map[string]bool),
		earlyCloses: make(map[string]bool),
	}
}

// AddHoliday marks a full-day market closure.
func (c *Calendar) AddHoliday(day time.Time) {
	c.holidays[day.In(c.loc).Format("2006-01-02")] = true
}

// AddEarlyClose marks a 13:00 close day.
func (c *Calendar) AddEarlyClose(day time.Time) {
	c.earlyCloses[day.In(c.loc).Format("2006-01-02")] = true
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether the market is closed all day.
func (c *Calendar) IsHoliday(day time.Time) bool {
	return c.holidays[day.In(c.loc).Format("2006-01-02")]
}

// CloseTime returns the closing bell for the given day.
func (c *Calendar) CloseTime(day time.Time) time.Time {
	d := day.In(c.loc)
	hour := 16
	if c.earlyCloses[d.Format("2006-01-02")] {
		hour = 13
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, c.loc)
}

// OpenTime returns the 09:30 bell for the given day.
func (c *Calendar) OpenTime(day time.Time) time.Time {
	d := day.In(c.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, c.loc)
}

// SessionFor derives the session phase for a wall-clock instant. Pure and
// deterministic; safe to call every cycle.
func SessionFor(now time.Time, cal *Calendar) Session {
	et := now.In(cal.loc)

	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return SessionClosed
	}
	if cal.IsHoliday(et) {
		return SessionClosed
	}

	preOpen := time.Date(et.Year(), et.Month(), et.Day(), 4, 0, 0, 0, cal.loc)
	open := cal.OpenTime(et)
	close := cal.CloseTime(et)
	afterClose := time.Date(et.Year(), et.Month(), et.Day(), 20, 0, 0, 0, cal.loc)

	switch {
	case et.Before(preOpen):
		return SessionClosed
	case et.Before(open):
		return SessionPreMarket
	case et.Before(open.Add(openingWindow)):
		return SessionOpening
	case et.Before(close):
		return SessionRegular
	case et.Before(afterClose):
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// SessionTracker remembers the previously observed phase so callers can run
// one-shot actions on transitions (range-engine reset at the open).
type SessionTracker struct {
	cal  *Calendar
	last Session
	at   time.Time
}

// NewSessionTracker creates a tracker starting in the closed phase.
func NewSessionTracker(cal *Calendar) *SessionTracker {
	return &SessionTracker{cal: cal, last: SessionClosed}
}

// Update recomputes the phase and reports whether it changed.
func (st *SessionTracker) Update(now time.Time) (current Session, changed bool) {
	current = SessionFor(now, st.cal)
	if current != st.last {
		st.last = current
		st.at = now
		return current, true
	}
	return current, false
}

// Current returns the last computed phase and its transition time.
func (st *SessionTracker) Current() (Session, time.Time) {
	return st.last, st.at
}
