package attendance

import (
	"fmt"
	"sort"
	"time"

	"rfidattend/internal/errclass"
	"rfidattend/internal/jalali"
)

// UnknownName labels tags whose records carry no display name.
const UnknownName = "Unknown"

// Summary is the worked time and distinct attendance days of one tag over a range.
type Summary struct {
	WorkedMinutes int
	Days          int
}

// WorkedTime formats the total as zero-padded HH:mm; hours are not wrapped at 24.
func (s Summary) WorkedTime() string {
	return FormatMinutes(s.WorkedMinutes)
}

// ReportRow is the per-tag line of an all-tags report.
type ReportRow struct {
	TagID           string `json:"rfid"`
	Name            string `json:"name"`
	TotalWorkedTime string `json:"totalWorkTime"`
	TotalDays       int    `json:"totalDays"`
}

// FormatMinutes renders minutes as HH:mm.
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

type timedRecord struct {
	rec Record
	at  time.Time
}

// bounds resolves [from, to] to the half-open instant interval [start, end).
func bounds(from, to jalali.Date) (time.Time, time.Time, error) {
	start, err := from.Time()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	last, err := to.Time()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, errclass.ErrInvalidRange.WithMessagef("start %s is after end %s", from, to)
	}
	return start, last.AddDate(0, 0, 1), nil
}

// Report computes tagID's worked time and attendance days between from and to, inclusive.
//
// Records are ordered by absolute time (Seq breaks ties). Each Enter is paired
// with the nearest following Exit, skipping any Enters in between, and scanning
// resumes after that Exit. An Enter with no following Exit contributes nothing.
func Report(tagID string, from, to jalali.Date, ledger []Record) (Summary, error) {
	start, end, err := bounds(from, to)
	if err != nil {
		return Summary{}, err
	}
	return summarize(tagID, start, end, ledger), nil
}

func summarize(tagID string, start, end time.Time, ledger []Record) Summary {
	var entries []timedRecord
	for _, rec := range ledger {
		if rec.TagID != tagID {
			continue
		}
		at, err := rec.Time.Time()
		if err != nil {
			continue
		}
		if at.Before(start) || !at.Before(end) {
			continue
		}
		entries = append(entries, timedRecord{rec: rec, at: at})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.Before(entries[j].at)
		}
		return entries[i].rec.Seq < entries[j].rec.Seq
	})

	var (
		minutes int
		days    = make(map[jalali.Date]struct{})
	)
	for i := 0; i < len(entries); i++ {
		if entries[i].rec.Action != ActionEnter {
			continue
		}
		j := i + 1
		for j < len(entries) && entries[j].rec.Action != ActionExit {
			j++
		}
		if j == len(entries) {
			break
		}
		minutes += int(entries[j].at.Sub(entries[i].at) / time.Minute)
		days[entries[i].rec.Time.Date] = struct{}{}
		i = j
	}
	return Summary{WorkedMinutes: minutes, Days: len(days)}
}

// ReportAll reports every tag present in the ledger, in order of first appearance.
// A tag's name is taken from its first ledger record.
func ReportAll(from, to jalali.Date, ledger []Record) ([]ReportRow, error) {
	start, end, err := bounds(from, to)
	if err != nil {
		return nil, err
	}

	var order []string
	names := make(map[string]string)
	for _, rec := range ledger {
		if _, seen := names[rec.TagID]; seen {
			continue
		}
		name := rec.Name
		if name == "" {
			name = UnknownName
		}
		names[rec.TagID] = name
		order = append(order, rec.TagID)
	}

	rows := make([]ReportRow, 0, len(order))
	for _, tag := range order {
		s := summarize(tag, start, end, ledger)
		rows = append(rows, ReportRow{
			TagID:           tag,
			Name:            names[tag],
			TotalWorkedTime: s.WorkedTime(),
			TotalDays:       s.Days,
		})
	}
	return rows, nil
}
