package models

import "time"

// Session classifies a timestamp within the trading venue's day.
type Session string

const (
	SessionPremarket Session = "premarket"
	SessionRegular   Session = "regular"
	SessionAfter     Session = "after"
	SessionClosed    Session = "closed"
)

// venueTZ is the fixed trading-venue timezone all day keys and session
// boundaries are derived in.
var venueTZ = mustLoadVenueTZ()

func mustLoadVenueTZ() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("venue timezone: " + err.Error())
	}
	return loc
}

// VenueTZ returns the venue timezone (New York).
func VenueTZ() *time.Location { return venueTZ }

// DayKey returns the venue-local calendar day (YYYY-MM-DD) for t.
func DayKey(t time.Time) string {
	return t.In(venueTZ).Format("2006-01-02")
}

// SessionFor classifies t: premarket 04:00-09:30, regular 09:30-16:00,
// after 16:00-20:00, closed otherwise. Weekends are closed.
func SessionFor(t time.Time) Session {
	lt := t.In(venueTZ)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return SessionClosed
	}
	mins := lt.Hour()*60 + lt.Minute()
	switch {
	case mins >= 4*60 && mins < 9*60+30:
		return SessionPremarket
	case mins >= 9*60+30 && mins < 16*60:
		return SessionRegular
	case mins >= 16*60 && mins < 20*60:
		return SessionAfter
	default:
		return SessionClosed
	}
}

// RegularClose returns the regular-session close (16:00 venue time) for the
// calendar day containing t.
func RegularClose(t time.Time) time.Time {
	lt := t.In(venueTZ)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 16, 0, 0, 0, venueTZ)
}

// RegularOpen returns the regular-session open (09:30 venue time) for the
// calendar day containing t.
func RegularOpen(t time.Time) time.Time {
	lt := t.In(venueTZ)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 9, 30, 0, 0, venueTZ)
}
