package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"ghcn-daily/internal/models"
	"ghcn-daily/pkg/database"
	"ghcn-daily/pkg/logging"
	"ghcn-daily/pkg/metrics"
)

// ObservationRepository stores stations and their daily rows. Values are
// kept in raw tenths; the sentinel is stored as NULL.
type ObservationRepository interface {
	CreateStation(ctx context.Context, station *models.Station) error
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
	ListStations(ctx context.Context, limit, offset int) ([]*models.Station, error)
	SummarizeStation(ctx context.Context, stationID string) (*models.StationSummary, error)

	SaveRows(ctx context.Context, rows []models.Row, batchSize int) (int, error)
	LoadRows(ctx context.Context, q ObservationQuery) ([]models.Row, error)

	HealthCheck(ctx context.Context) error
}

// ObservationQuery selects the rows of one station. Nil years are open
// bounds; an empty Elements list selects every element.
type ObservationQuery struct {
	StationID string
	StartYear *int
	EndYear   *int
	Elements  []string
}

type observationRow struct {
	StationID string          `db:"station_id"`
	Year      int             `db:"year"`
	Month     int             `db:"month"`
	Day       int             `db:"day"`
	Element   string          `db:"element"`
	Value     sql.NullFloat64 `db:"value"`
}

func (o observationRow) toRow() models.Row {
	value := float64(models.Sentinel)
	if o.Value.Valid {
		value = o.Value.Float64
	}
	return models.Row{
		Station: o.StationID,
		Year:    o.Year,
		Month:   o.Month,
		Day:     o.Day,
		Obs:     o.Element,
		Value:   value,
	}
}

func nullableValue(r models.Row) sql.NullFloat64 {
	if r.Missing() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: r.Value, Valid: true}
}

type observationRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewObservationRepository creates a repository on db
func NewObservationRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ObservationRepository {
	return &observationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateStation inserts a station; an existing id is left unchanged
func (r *observationRepository) CreateStation(ctx context.Context, station *models.Station) error {
	query := `
		INSERT INTO stations (station_id, country)
		VALUES (?, ?)
		ON CONFLICT (station_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, "insert_station", query, station.StationID, station.Country); err != nil {
		return fmt.Errorf("failed to create station: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_STATION] Station created", logging.Fields{
		"station_id": station.StationID,
		"country":    station.Country,
	})
	return nil
}

func (r *observationRepository) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	query := `
		SELECT station_id, country
		FROM stations
		WHERE station_id = ?
	`

	var station models.Station
	err := r.db.GetContext(ctx, "get_station", &station, query, stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "station", ID: stationID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return &station, nil
}

// ListStations pages through stations ordered by id
func (r *observationRepository) ListStations(ctx context.Context, limit, offset int) ([]*models.Station, error) {
	query := `
		SELECT station_id, country
		FROM stations
		ORDER BY station_id
		LIMIT ? OFFSET ?
	`

	stations := []*models.Station{}
	if err := r.db.SelectContext(ctx, "list_stations", &stations, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	return stations, nil
}

// SummarizeStation reports the year span, row count and elements stored
// for a station
func (r *observationRepository) SummarizeStation(ctx context.Context, stationID string) (*models.StationSummary, error) {
	station, err := r.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	summary := &models.StationSummary{Station: *station, Elements: []string{}}

	var span struct {
		FirstYear sql.NullInt64 `db:"first_year"`
		LastYear  sql.NullInt64 `db:"last_year"`
		Rows      int           `db:"row_count"`
	}
	spanQuery := `
		SELECT MIN(year) AS first_year, MAX(year) AS last_year, COUNT(*) AS row_count
		FROM daily_observations
		WHERE station_id = ?
	`
	if err := r.db.GetContext(ctx, "summarize_station", &span, spanQuery, stationID); err != nil {
		return nil, fmt.Errorf("failed to summarize station: %w", err)
	}
	summary.FirstYear = int(span.FirstYear.Int64)
	summary.LastYear = int(span.LastYear.Int64)
	summary.Rows = span.Rows

	elementQuery := `
		SELECT DISTINCT element
		FROM daily_observations
		WHERE station_id = ?
		ORDER BY element
	`
	if err := r.db.SelectContext(ctx, "station_elements", &summary.Elements, elementQuery, stationID); err != nil {
		return nil, fmt.Errorf("failed to list station elements: %w", err)
	}

	return summary, nil
}

// SaveRows upserts rows in transactions of at most batchSize rows and
// returns how many were written. A failing batch is rolled back and
// earlier batches stay committed.
func (r *observationRepository) SaveRows(ctx context.Context, rows []models.Row, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(rows)
	}

	saved := 0
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := r.saveBatch(ctx, rows[start:end]); err != nil {
			return saved, err
		}
		saved += end - start
	}
	return saved, nil
}

func (r *observationRepository) saveBatch(ctx context.Context, rows []models.Row) error {
	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Batch upsert completed", logging.Fields{
			"count":       len(rows),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO daily_observations (station_id, year, month, day, element, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (station_id, year, month, element, day) DO UPDATE SET
			value = excluded.value
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Station, row.Year, row.Month, row.Day, row.Obs, nullableValue(row)); err != nil {
			r.metrics.RecordDBError("upsert_error")
			return fmt.Errorf("failed to upsert observation %s %04d-%02d-%02d %s: %w",
				row.Station, row.Year, row.Month, row.Day, row.Obs, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadRows returns the rows of a station ordered by year, month, element
// and day, so each station month of one element stays contiguous.
func (r *observationRepository) LoadRows(ctx context.Context, q ObservationQuery) ([]models.Row, error) {
	query := `
		SELECT station_id, year, month, day, element, value
		FROM daily_observations
		WHERE station_id = ?
	`
	args := []interface{}{q.StationID}

	if q.StartYear != nil {
		query += " AND year >= ?"
		args = append(args, *q.StartYear)
	}
	if q.EndYear != nil {
		query += " AND year <= ?"
		args = append(args, *q.EndYear)
	}
	if len(q.Elements) > 0 {
		in, inArgs, err := sqlx.In(" AND element IN (?)", q.Elements)
		if err != nil {
			return nil, fmt.Errorf("failed to expand element list: %w", err)
		}
		query += in
		args = append(args, inArgs...)
	}
	query += " ORDER BY year, month, element, day"

	var stored []observationRow
	if err := r.db.SelectContext(ctx, "load_rows", &stored, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	rows := make([]models.Row, len(stored))
	for i, o := range stored {
		rows[i] = o.toRow()
	}
	return rows, nil
}

func (r *observationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
