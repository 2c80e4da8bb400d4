package jalali

import (
	"fmt"
	"strings"
)

var monthNames = [...]string{
	"فروردین", "اردیبهشت", "خرداد", "تیر", "مرداد", "شهریور",
	"مهر", "آبان", "آذر", "دی", "بهمن", "اسفند",
}

// indexed by time.Weekday
var weekdayNames = [...]string{
	"یکشنبه", "دوشنبه", "سه‌شنبه", "چهارشنبه", "پنجشنبه", "جمعه", "شنبه",
}

var persianDigits = strings.NewReplacer(
	"0", "۰", "1", "۱", "2", "۲", "3", "۳", "4", "۴",
	"5", "۵", "6", "۶", "7", "۷", "8", "۸", "9", "۹",
)

// MonthName returns the Persian name of month m (1-based), or "" when out of range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m-1]
}

// PersianDigits rewrites ASCII digits in s with Extended Arabic-Indic digits.
func PersianDigits(s string) string {
	return persianDigits.Replace(s)
}

// Persian renders dt for humans, e.g. "چهارشنبه ۱ فروردین ۱۴۰۳، ساعت ۰۸:۰۰".
// Invalid values fall back to the numeric form.
func (dt DateTime) Persian() string {
	t, err := dt.Time()
	if err != nil {
		return dt.String()
	}
	return PersianDigits(fmt.Sprintf("%s %d %s %d، ساعت %02d:%02d",
		weekdayNames[t.Weekday()], dt.Day, MonthName(dt.Month), dt.Year, dt.Hour, dt.Minute))
}
