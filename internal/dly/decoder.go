package dly

import (
	"strconv"
	"strings"

	"ghcn-daily/internal/models"
)

// Field offsets of a .dly line
const (
	idEnd       = 11
	yearStart   = 11
	yearEnd     = 15
	monthStart  = 15
	monthEnd    = 17
	elementEnd  = 21
	slotWidth   = 8
	valueWidth  = 5
	headerWidth = elementEnd

	// LineWidth is the full width of a record line.
	LineWidth = headerWidth + models.DaysPerRecord*slotWidth

	// MinLineWidth is the shortest accepted line: every value field must be
	// present but the three flag columns of day 31 may be trimmed.
	MinLineWidth = LineWidth - 3
)

// DecodeLine decodes one fixed-width line into a Record.
func DecodeLine(line string) (*models.Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < MinLineWidth {
		return nil, &models.MalformedRecordError{
			Reason: "line too short: got " + strconv.Itoa(len(line)) +
				" chars, need at least " + strconv.Itoa(MinLineWidth),
		}
	}
	if len(line) < LineWidth {
		line += strings.Repeat(" ", LineWidth-len(line))
	}

	year, err := parseIntField("year", line[yearStart:yearEnd])
	if err != nil {
		return nil, err
	}
	month, err := parseIntField("month", line[monthStart:monthEnd])
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, &models.MalformedRecordError{
			Field:  "month",
			Value:  line[monthStart:monthEnd],
			Reason: "month out of range 1-12",
		}
	}

	rec := &models.Record{
		StationID: strings.TrimSpace(line[:idEnd]),
		Year:      year,
		Month:     month,
		Element:   line[monthEnd:elementEnd],
	}

	for day := 0; day < models.DaysPerRecord; day++ {
		start := headerWidth + day*slotWidth
		slot := line[start : start+slotWidth]

		value, err := parseValue(day+1, slot[:valueWidth])
		if err != nil {
			return nil, err
		}
		rec.Values[day] = models.DailyValue{
			Value: value,
			MFlag: slot[5],
			QFlag: slot[6],
			SFlag: slot[7],
		}
	}

	return rec, nil
}

// RecordYear reads only the year field of a line. ok is false when the
// line is too short to hold it or the field is not an integer.
func RecordYear(line string) (year int, ok bool) {
	if len(line) < yearEnd {
		return 0, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(line[yearStart:yearEnd]))
	return year, err == nil
}

func parseIntField(name, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &models.MalformedRecordError{
			Field:  name,
			Value:  raw,
			Reason: "not an integer",
		}
	}
	return v, nil
}

// parseValue decodes a 5 char value field. A blank field is unobserved.
func parseValue(day int, raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.Sentinel, nil
	}
	v, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, &models.MalformedRecordError{
			Field:  "value[" + strconv.Itoa(day) + "]",
			Value:  raw,
			Reason: "not an integer",
		}
	}
	return v, nil
}
