package dly

import "ghcn-daily/internal/models"

// ToRecords reshapes a table into one ordered value slice per column name
func ToRecords(t *Table) map[string][]any {
	records := make(map[string][]any, len(models.Columns))
	for _, c := range models.Columns {
		records[string(c)] = make([]any, 0, t.Len())
	}
	for _, r := range t.rows {
		for _, c := range models.Columns {
			records[string(c)] = append(records[string(c)], r.Get(c))
		}
	}
	return records
}
