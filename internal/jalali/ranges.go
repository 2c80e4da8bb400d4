package jalali

import "time"

// Range is an inclusive span of calendar days.
type Range struct {
	From Date
	To   Date
}

func (r Range) String() string {
	return r.From.String() + ".." + r.To.String()
}

// CurrentWeek returns the Saturday..Friday week containing now (Tehran).
func CurrentWeek(now time.Time) (Range, error) {
	start := weekStart(now)
	return dayRange(start, start.AddDate(0, 0, 6))
}

// LastWeek returns the Saturday..Friday week preceding the one containing now.
// On a Saturday, the current week starts today.
func LastWeek(now time.Time) (Range, error) {
	start := weekStart(now).AddDate(0, 0, -7)
	return dayRange(start, start.AddDate(0, 0, 6))
}

// CurrentMonth returns the Jalali month containing now.
func CurrentMonth(now time.Time) (Range, error) {
	today, err := DateOf(now)
	if err != nil {
		return Range{}, err
	}
	return monthRange(today.Year, today.Month), nil
}

// LastMonth returns the full Jalali month before the one containing now.
func LastMonth(now time.Time) (Range, error) {
	today, err := DateOf(now)
	if err != nil {
		return Range{}, err
	}
	y, m := today.Year, today.Month-1
	if m == 0 {
		y, m = y-1, 12
	}
	if !validYear(y) {
		return Range{}, Date{Year: y, Month: m, Day: 1}.Validate()
	}
	return monthRange(y, m), nil
}

func monthRange(y, m int) Range {
	return Range{
		From: Date{Year: y, Month: m, Day: 1},
		To:   Date{Year: y, Month: m, Day: MonthLength(y, m)},
	}
}

// weekStart returns Tehran midnight of the most recent Saturday, today included.
func weekStart(now time.Time) time.Time {
	local := now.In(Tehran)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Tehran)
	offset := (int(local.Weekday()) - int(time.Saturday) + 7) % 7
	return midnight.AddDate(0, 0, -offset)
}

func dayRange(from, to time.Time) (Range, error) {
	f, err := DateOf(from)
	if err != nil {
		return Range{}, err
	}
	t, err := DateOf(to)
	if err != nil {
		return Range{}, err
	}
	return Range{From: f, To: t}, nil
}
