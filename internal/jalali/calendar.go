// Package jalali converts between Gregorian instants and Solar Hijri (Jalali)
// civil date/times in the fixed Tehran timezone.
package jalali

// Year boundaries of the 33-year-cycle break table. Years outside
// [breaks[0], breaks[len-1]) cannot be represented.
var breaks = [...]int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

const (
	MinYear = -61
	MaxYear = 3177
)

type yearInfo struct {
	leap  int // years since the last leap year, 0 means leap
	gy    int // Gregorian year in which the Jalali year begins
	march int // March day of Farvardin 1
}

func validYear(jy int) bool {
	return jy >= MinYear && jy <= MaxYear
}

// yearCal assumes validYear(jy).
func yearCal(jy int) yearInfo {
	gy := jy + 621
	leapJ := -14
	jp := breaks[0]
	jump := 0
	for i := 1; i < len(breaks); i++ {
		jm := breaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + (jump%33)/4
		jp = jm
	}
	n := jy - jp

	leapJ += n/33*8 + (n%33+3)/4
	if jump%33 == 4 && jump-n == 4 {
		leapJ++
	}

	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march := 20 + leapJ - leapG

	if jump-n < 6 {
		n = n - jump + (jump+4)/33*33
	}
	leap := ((n+1)%33 - 1) % 4
	if leap == -1 {
		leap = 4
	}
	return yearInfo{leap: leap, gy: gy, march: march}
}

// IsLeap reports whether jy has a 30-day Esfand.
func IsLeap(jy int) bool {
	return validYear(jy) && yearCal(jy).leap == 0
}

// MonthLength returns the number of days in month jm of year jy, or 0 for an invalid month.
func MonthLength(jy, jm int) int {
	switch {
	case jm >= 1 && jm <= 6:
		return 31
	case jm >= 7 && jm <= 11:
		return 30
	case jm == 12:
		if IsLeap(jy) {
			return 30
		}
		return 29
	}
	return 0
}

// gregorianToDayNumber returns the Julian Day Number of a proleptic Gregorian date.
func gregorianToDayNumber(gy, gm, gd int) int {
	d := (gy+(gm-8)/6+100100)*1461/4 + (153*((gm+9)%12)+2)/5 + gd - 34840408
	return d - (gy+100100+(gm-8)/6)/100*3/4 + 752
}

func dayNumberToGregorian(jdn int) (gy, gm, gd int) {
	j := 4*jdn + 139361631
	j = j + (4*jdn+183187720)/146097*3/4*4 - 3908
	i := (j%1461)/4*5 + 308
	gd = (i%153)/5 + 1
	gm = (i/153)%12 + 1
	gy = j/1461 - 100100 + (8-gm)/6
	return gy, gm, gd
}

func jalaliToDayNumber(jy, jm, jd int) int {
	r := yearCal(jy)
	return gregorianToDayNumber(r.gy, 3, r.march) + (jm-1)*31 - jm/7*(jm-7) + jd - 1
}

// dayNumberToJalali reports ok=false when the day falls outside the supported years.
func dayNumberToJalali(jdn int) (jy, jm, jd int, ok bool) {
	gy, _, _ := dayNumberToGregorian(jdn)
	jy = gy - 621
	if !validYear(jy) || !validYear(jy-1) {
		return 0, 0, 0, false
	}
	r := yearCal(jy)
	k := jdn - gregorianToDayNumber(gy, 3, r.march)
	if k >= 0 {
		if k <= 185 {
			return jy, 1 + k/31, k%31 + 1, true
		}
		k -= 186
	} else {
		jy--
		k += 179
		if r.leap == 1 {
			k++
		}
	}
	return jy, 7 + k/30, k%30 + 1, true
}
