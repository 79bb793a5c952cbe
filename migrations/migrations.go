// Package migrations embeds the SQL schema and applies it to a database.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed *.sql
var files embed.FS

// Direction selects up or down scripts
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" or "down"
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Up, Down:
		return d, nil
	}
	return "", fmt.Errorf("migration direction must be up or down, got %q", s)
}

// Scripts lists the migration files for d in the order they run: by
// name for up, reversed for down.
func Scripts(d Direction) ([]string, error) {
	names, err := fs.Glob(files, "*."+string(d)+".sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if d == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}
	return names, nil
}

// Run executes every script for d. Statements are split on semicolons and
// sent one at a time since not every driver accepts batches.
func Run(ctx context.Context, db *sqlx.DB, d Direction) ([]string, error) {
	names, err := Scripts(d)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range statements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("migration %s: %w", name, err)
			}
		}
	}
	return names, nil
}

func statements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
