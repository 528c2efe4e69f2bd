// Package normalize converts the loosely typed cell values that come out
// of backoffice spreadsheet exports into canonical scalar values. Every
// function here is total: malformed input degrades to nil/false/0 rather
// than failing the batch it came from.
package normalize

import (
	"strconv"
	"strings"
	"time"
)

// days between the spreadsheet serial epoch (1899-12-31, including the
// fictitious 1900-02-29) and the unix epoch
const serialEpochDays = 25569

// serials outside this window are misparsed garbage, not dates
const (
	minPlausibleYear = 1900
	maxPlausibleYear = 2200
)

const isoMillis = "2006-01-02T15:04:05.000Z"

type DateOptions struct {
	// correction applied to numeric serials, in days. The exports
	// inherit the historical 1900 leap-year bug plus an off-by-one in
	// the source system, so most domains pass 2 here.
	SerialCorrectionDays int
	// reject any date before this year. 0 disables the floor.
	MinYear int
}

// DateISO accepts either a numeric date serial (day count since the
// spreadsheet epoch) or a string in one of the date formats the
// backoffice emits (`YYYY-MM-DD[ HH:mm[:ss]]`, `DD-MM-YYYY[ HH:mm[:ss]]`,
// same with `/` separators) and returns an ISO-8601 UTC timestamp, or
// nil when the value is empty, malformed or implausible.
func DateISO(value any, opts DateOptions) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return checkedISO(v.UTC(), opts)
	case float64:
		return serialToISO(v, opts)
	case float32:
		return serialToISO(float64(v), opts)
	case int:
		return serialToISO(float64(v), opts)
	case int64:
		return serialToISO(float64(v), opts)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			return serialToISO(serial, opts)
		}
		return stringToISO(s, opts)
	default:
		return nil
	}
}

func serialToISO(serial float64, opts DateOptions) *string {
	if serial <= 0 {
		return nil
	}
	days := serial - serialEpochDays - float64(opts.SerialCorrectionDays)
	seconds := days * 86400
	t := time.Unix(int64(seconds), 0).UTC()
	return checkedISO(t, opts)
}

func stringToISO(s string, opts DateOptions) *string {
	s = strings.ReplaceAll(s, "/", "-")

	datePart := s
	timePart := ""
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		datePart = s[:idx]
		timePart = strings.TrimSpace(s[idx+1:])
	}

	fields := strings.Split(datePart, "-")
	if len(fields) != 3 {
		return nil
	}
	var year, month, day int
	var err1, err2, err3 error
	if len(fields[0]) == 4 {
		year, err1 = strconv.Atoi(fields[0])
		month, err2 = strconv.Atoi(fields[1])
		day, err3 = strconv.Atoi(fields[2])
	} else {
		day, err1 = strconv.Atoi(fields[0])
		month, err2 = strconv.Atoi(fields[1])
		year, err3 = strconv.Atoi(fields[2])
	}
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}

	hour, minute, second := 0, 0, 0
	if timePart != "" {
		clock := strings.Split(timePart, ":")
		if len(clock) < 2 || len(clock) > 3 {
			return nil
		}
		hour, err1 = strconv.Atoi(clock[0])
		minute, err2 = strconv.Atoi(clock[1])
		if len(clock) == 3 {
			second, err3 = strconv.Atoi(clock[2])
		}
		if err1 != nil || err2 != nil || err3 != nil {
			return nil
		}
		if hour > 23 || minute > 59 || second > 59 {
			return nil
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes overflow (e.g. 31-02 becomes 03-03), which
	// here means the input was not a real calendar date
	if t.Day() != day || t.Month() != time.Month(month) {
		return nil
	}
	return checkedISO(t, opts)
}

func checkedISO(t time.Time, opts DateOptions) *string {
	floor := minPlausibleYear
	if opts.MinYear > floor {
		floor = opts.MinYear
	}
	if t.Year() < floor || t.Year() > maxPlausibleYear {
		return nil
	}
	iso := t.Format(isoMillis)
	return &iso
}

// truthy vocabulary of the backoffice exports (pt-PT plus the english
// spellings that show up in older columns)
var truthyStrings = map[string]bool{
	"sim":  true,
	"yes":  true,
	"true": true,
	"1":    true,
}

// Bool reports whether the cell holds an affirmative value. Anything
// unrecognized is false; it never errors.
func Bool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case float32:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	case string:
		return truthyStrings[strings.ToLower(strings.TrimSpace(v))]
	default:
		return false
	}
}

// Number parses a numeric cell, tolerating comma decimal separators and
// stray currency markers. Failure yields 0 rather than an error because
// downstream aggregation must never see a null.
func Number(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(v)
		s = strings.ReplaceAll(s, "€", "")
		s = strings.ReplaceAll(s, " ", "")
		if strings.Contains(s, ",") {
			// comma is the decimal separator; dots are thousands
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Int is the integer-truncating variant of Number.
func Int(value any) int64 {
	return int64(Number(value))
}

// Text returns the trimmed cell text, or nil for empty/absent cells.
// Used for the optional free-text columns.
func Text(value any) *string {
	var s string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(v, 10)
	case int:
		s = strconv.Itoa(v)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// String is like Text but collapses absent cells to "". Used for
// required concrete columns like natural keys.
func String(value any) string {
	t := Text(value)
	if t == nil {
		return ""
	}
	return *t
}
