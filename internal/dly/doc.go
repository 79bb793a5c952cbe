// Package dly decodes GHCN-Daily .dly files and queries the decoded rows.
//
// # File format
//
// Each line holds one station, month and element (observation type) with
// 31 day slots. Columns, 0-indexed and half-open:
//
//	[0,11)   station id
//	[11,15)  year
//	[15,17)  month
//	[17,21)  element, e.g. TMAX, TMIN, PRCP
//	[21,269) 31 slots of 8 chars: value (5) mflag (1) qflag (1) sflag (1)
//
// A value of -9999 means the day was not observed. Temperatures are stored
// in tenths of a degree C and precipitation in tenths of a mm.
//
// # Pipeline
//
// DecodeLine turns one line into a models.Record. Build decodes a whole
// input into a Table. Apply narrows a Table with Filters, and Interpolate
// fills sentinel gaps and rescales tenths to physical units. Every step
// returns a new Table; the input is never modified.
package dly
