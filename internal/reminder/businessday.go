// Package reminder implements the due-date reminder sweep: business-day
// arithmetic plus an idempotent pass over the three reminder tracks
// (invite, protocol feedback, action-list feedback).
package reminder

import "time"

// MinusBusinessDays walks backward from d one calendar day at a time,
// counting only weekdays. Weekends use a fixed Sat/Sun definition; there
// is no holiday calendar.
func MinusBusinessDays(d time.Time, n int) time.Time {
	for n > 0 {
		d = d.AddDate(0, 0, -1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return d
}

// SameDate reports whether two times fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
