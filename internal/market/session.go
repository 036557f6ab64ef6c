package market

import (
	"fmt"
	"time"
)

// Session is the exchange trading window. NSE cash and derivatives both run
// 09:15-15:30 Monday through Friday; holidays are not modelled.
type Session struct {
	startMinute int
	endMinute   int
}

// NewSession parses "HH:MM" bounds into a session gate.
func NewSession(start, end string) (*Session, error) {
	s, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("session start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("session end: %w", err)
	}
	if e <= s {
		return nil, fmt.Errorf("session end %q not after start %q", end, start)
	}
	return &Session{startMinute: s, endMinute: e}, nil
}

// IsOpen reports whether the exchange is trading at the given instant.
func (s *Session) IsOpen(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	return minute >= s.startMinute && minute <= s.endMinute
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("bad clock value %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
