package oceancolor

import "time"

// Period is the inclusive day range of one composite.
type Period struct {
	Start time.Time
	End   time.Time
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EightDayPeriods returns the 8-day composite periods whose start falls in
// [start, end]. Periods restart on January 1st every year; the last one of
// a year ends on December 31st.
func EightDayPeriods(start, end time.Time) []Period {
	start, end = day(start), day(end)
	var out []Period
	for year := start.Year(); year <= end.Year(); year++ {
		jan1 := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		dec31 := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
		for s := jan1; !s.After(dec31); s = s.AddDate(0, 0, 8) {
			if s.Before(start) || s.After(end) {
				continue
			}
			e := s.AddDate(0, 0, 7)
			if e.Year() > year {
				e = dec31
			}
			out = append(out, Period{Start: s, End: e})
		}
	}
	return out
}

// DailyPeriods returns one single-day period every `every` days from start
// through end. every below 1 means every day.
func DailyPeriods(start, end time.Time, every int) []Period {
	if every < 1 {
		every = 1
	}
	start, end = day(start), day(end)
	var out []Period
	for d := start; !d.After(end); d = d.AddDate(0, 0, every) {
		out = append(out, Period{Start: d, End: d})
	}
	return out
}
