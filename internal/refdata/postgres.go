package refdata

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/screener/internal/contracts"
)

// Schema creates the long-format reference tables
const Schema = `
CREATE SCHEMA IF NOT EXISTS refdata;

CREATE TABLE IF NOT EXISTS refdata.timeseries (
	metric    TEXT             NOT NULL,
	obs_date  DATE             NOT NULL,
	entity_id TEXT             NOT NULL,
	value     DOUBLE PRECISION,
	PRIMARY KEY (metric, obs_date, entity_id)
);

CREATE TABLE IF NOT EXISTS refdata.universe_members (
	universe  TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	PRIMARY KEY (universe, entity_id)
);
`

// Observation is one long-format reference value
type Observation struct {
	Date     time.Time
	EntityID string
	Value    *float64 // NULL = missing
}

// Repository loads reference data from Postgres
// ⭐ SSOT: refdata 스키마 접근은 여기서만
type Repository struct {
	pool          *pgxpool.Pool
	returnsMetric string
	universe      string
}

// NewRepository creates a new reference data repository
func NewRepository(pool *pgxpool.Pool, returnsMetric, universe string) *Repository {
	return &Repository{
		pool:          pool,
		returnsMetric: returnsMetric,
		universe:      universe,
	}
}

// EnsureSchema creates the refdata tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create refdata schema: %w", err)
	}
	return nil
}

// LoadReturns pivots the returns metric into a DATE × ID matrix
func (r *Repository) LoadReturns(ctx context.Context) (*contracts.TimeSeriesTable, error) {
	obs, err := r.observations(ctx, r.returnsMetric)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("no rows for returns metric %q", r.returnsMetric)
	}
	return Pivot("returns", obs)
}

// LoadUniverse reads the configured universe's members
func (r *Repository) LoadUniverse(ctx context.Context) (*contracts.ReferenceUniverse, error) {
	query := `
		SELECT entity_id
		FROM refdata.universe_members
		WHERE universe = $1
		ORDER BY entity_id
	`

	rows, err := r.pool.Query(ctx, query, r.universe)
	if err != nil {
		return nil, fmt.Errorf("failed to query universe: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan universe: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("universe %q has no members", r.universe)
	}
	return contracts.NewReferenceUniverse(r.universe, ids), nil
}

// LoadFundamentals pivots every metric except returns
func (r *Repository) LoadFundamentals(ctx context.Context) (map[string]*contracts.TimeSeriesTable, error) {
	query := `
		SELECT DISTINCT metric
		FROM refdata.timeseries
		WHERE metric <> $1
		ORDER BY metric
	`

	rows, err := r.pool.Query(ctx, query, r.returnsMetric)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	metrics, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan metrics: %w", err)
	}

	out := make(map[string]*contracts.TimeSeriesTable, len(metrics))
	for _, m := range metrics {
		obs, err := r.observations(ctx, m)
		if err != nil {
			return nil, err
		}
		table, err := Pivot(m, obs)
		if err != nil {
			return nil, err
		}
		out[m] = table
	}
	return out, nil
}

func (r *Repository) observations(ctx context.Context, metric string) ([]Observation, error) {
	query := `
		SELECT obs_date, entity_id, value
		FROM refdata.timeseries
		WHERE metric = $1
		ORDER BY obs_date ASC, entity_id ASC
	`

	rows, err := r.pool.Query(ctx, query, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", metric, err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.Date, &o.EntityID, &o.Value); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", metric, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// Pivot turns long observations into a wide matrix.
// IDs are sorted; absent (date, id) pairs and NULLs become NaN.
func Pivot(name string, obs []Observation) (*contracts.TimeSeriesTable, error) {
	dateIndex := make(map[time.Time]int)
	idIndex := make(map[string]int)
	var dates []time.Time
	var ids []string

	for _, o := range obs {
		d := o.Date.UTC().Truncate(24 * time.Hour)
		if _, ok := dateIndex[d]; !ok {
			dateIndex[d] = 0
			dates = append(dates, d)
		}
		if _, ok := idIndex[o.EntityID]; !ok {
			idIndex[o.EntityID] = 0
			ids = append(ids, o.EntityID)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	sort.Strings(ids)
	for i, d := range dates {
		dateIndex[d] = i
	}
	for i, id := range ids {
		idIndex[id] = i
	}

	values := make([][]float64, len(dates))
	for i := range values {
		row := make([]float64, len(ids))
		for j := range row {
			row[j] = math.NaN()
		}
		values[i] = row
	}

	for _, o := range obs {
		if o.Value == nil {
			continue
		}
		d := o.Date.UTC().Truncate(24 * time.Hour)
		values[dateIndex[d]][idIndex[o.EntityID]] = *o.Value
	}

	return contracts.NewTimeSeriesTable(name, dates, ids, values)
}
