package entity

import "time"

// NextDigestAt returns when the next regular digest goes out after now, in
// now's location: 08:00 tomorrow for daily, 09:00 on the coming Sunday for
// weekly (a week ahead when now is a Sunday).
func (f Frequency) NextDigestAt(now time.Time) time.Time {
	y, m, d := now.Date()
	if f == FrequencyWeekly {
		days := 7 - int(now.Weekday())
		return time.Date(y, m, d+days, 9, 0, 0, 0, now.Location())
	}
	return time.Date(y, m, d+1, 8, 0, 0, 0, now.Location())
}
