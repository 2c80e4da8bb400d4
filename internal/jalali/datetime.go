package jalali

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rfidattend/internal/errclass"
)

// Tehran is the fixed civil zone (UTC+03:30) every persisted timestamp is expressed in.
var Tehran = time.FixedZone("IRST", 3*60*60+30*60)

// Date is a Solar Hijri calendar day.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateTime is a Solar Hijri civil date with minute-resolution wall-clock time in Tehran.
type DateTime struct {
	Date
	Hour   int
	Minute int
}

// FromTime converts an instant to its Tehran civil Jalali date/time. Seconds are truncated.
func FromTime(t time.Time) (DateTime, error) {
	local := t.In(Tehran)
	jdn := gregorianToDayNumber(local.Year(), int(local.Month()), local.Day())
	jy, jm, jd, ok := dayNumberToJalali(jdn)
	if !ok {
		return DateTime{}, errclass.ErrInvalidDate.WithMessagef("%s is outside the supported calendar range", t.Format(time.RFC3339))
	}
	return DateTime{
		Date:   Date{Year: jy, Month: jm, Day: jd},
		Hour:   local.Hour(),
		Minute: local.Minute(),
	}, nil
}

// DateOf returns the Jalali calendar day containing t in Tehran.
func DateOf(t time.Time) (Date, error) {
	dt, err := FromTime(t)
	if err != nil {
		return Date{}, err
	}
	return dt.Date, nil
}

// Validate checks that d names a real day of the supported calendar.
func (d Date) Validate() error {
	if !validYear(d.Year) {
		return errclass.ErrInvalidDate.WithMessagef("year %d outside %d..%d", d.Year, MinYear, MaxYear)
	}
	if d.Month < 1 || d.Month > 12 {
		return errclass.ErrInvalidDate.WithMessagef("month %d out of range", d.Month)
	}
	if n := MonthLength(d.Year, d.Month); d.Day < 1 || d.Day > n {
		return errclass.ErrInvalidDate.WithMessagef("day %d out of range for %d-%02d (has %d days)", d.Day, d.Year, d.Month, n)
	}
	return nil
}

// Time returns midnight of d in Tehran.
func (d Date) Time() (time.Time, error) {
	if err := d.Validate(); err != nil {
		return time.Time{}, err
	}
	gy, gm, gd := dayNumberToGregorian(jalaliToDayNumber(d.Year, d.Month, d.Day))
	return time.Date(gy, time.Month(gm), gd, 0, 0, 0, 0, Tehran), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Validate checks the calendar day and the wall-clock fields.
func (dt DateTime) Validate() error {
	if err := dt.Date.Validate(); err != nil {
		return err
	}
	if dt.Hour < 0 || dt.Hour > 23 || dt.Minute < 0 || dt.Minute > 59 {
		return errclass.ErrInvalidDate.WithMessagef("time %02d:%02d out of range", dt.Hour, dt.Minute)
	}
	return nil
}

// Time converts dt to the absolute instant it denotes.
func (dt DateTime) Time() (time.Time, error) {
	if err := dt.Validate(); err != nil {
		return time.Time{}, err
	}
	midnight, err := dt.Date.Time()
	if err != nil {
		return time.Time{}, err
	}
	return midnight.Add(time.Duration(dt.Hour)*time.Hour + time.Duration(dt.Minute)*time.Minute), nil
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%s %02d:%02d", dt.Date.String(), dt.Hour, dt.Minute)
}

// MarshalText encodes dt in the persisted "YYYY-MM-DD HH:mm" form.
func (dt DateTime) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

// UnmarshalText parses the persisted "YYYY-MM-DD HH:mm" form.
func (dt *DateTime) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// Parse reads "YYYY-MM-DD HH:mm".
func Parse(s string) (DateTime, error) {
	datePart, timePart, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return DateTime{}, errclass.ErrInvalidDate.WithMessagef("%q: want YYYY-MM-DD HH:mm", s)
	}
	d, err := ParseDate(datePart)
	if err != nil {
		return DateTime{}, err
	}
	hh, mm, ok := strings.Cut(timePart, ":")
	if !ok {
		return DateTime{}, errclass.ErrInvalidDate.WithMessagef("%q: want HH:mm", timePart)
	}
	hour, err := fixedDigits(hh, 2)
	if err != nil {
		return DateTime{}, err
	}
	minute, err := fixedDigits(mm, 2)
	if err != nil {
		return DateTime{}, err
	}
	dt := DateTime{Date: d, Hour: hour, Minute: minute}
	if err := dt.Validate(); err != nil {
		return DateTime{}, err
	}
	return dt, nil
}

// ParseDate reads "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || len(parts[0]) == 0 || len(parts[0]) > 4 {
		return Date{}, errclass.ErrInvalidDate.WithMessagef("%q: want YYYY-MM-DD", s)
	}
	year, err := fixedDigits(parts[0], len(parts[0]))
	if err != nil {
		return Date{}, err
	}
	month, err := fixedDigits(parts[1], 2)
	if err != nil {
		return Date{}, err
	}
	day, err := fixedDigits(parts[2], 2)
	if err != nil {
		return Date{}, err
	}
	d := Date{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

func fixedDigits(s string, width int) (int, error) {
	if len(s) != width {
		return 0, errclass.ErrInvalidDate.WithMessagef("%q: want %d digits", s, width)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errclass.ErrInvalidDate.WithMessagef("%q: not a number", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errclass.ErrInvalidDate.WithMessagef("%q: %v", s, err)
	}
	return n, nil
}
