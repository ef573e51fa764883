package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/melophile/internal/features"
)

// FeatureRepository handles feature catalog database operations.
type FeatureRepository struct {
	pool *pgxpool.Pool
}

// List retrieves the stored feature definitions in position order.
func (r *FeatureRepository) List(ctx context.Context) ([]FeatureDefinition, error) {
	query := `
		SELECT name, position, data_type, min_value, max_value, normalized
		FROM features
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying features: %w", err)
	}
	defer rows.Close()

	var defs []FeatureDefinition
	for rows.Next() {
		var d FeatureDefinition
		if err := rows.Scan(&d.Name, &d.Position, &d.DataType, &d.Min, &d.Max, &d.Normalized); err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// Seed inserts or updates the given definitions.
func (r *FeatureRepository) Seed(ctx context.Context, defs []features.Definition) error {
	if len(defs) == 0 {
		return nil
	}

	query := `
		INSERT INTO features (name, position, data_type, min_value, max_value, normalized)
		SELECT * FROM unnest($1::text[], $2::int[], $3::text[], $4::float8[], $5::float8[], $6::bool[])
		ON CONFLICT (name) DO UPDATE SET
			position = EXCLUDED.position,
			data_type = EXCLUDED.data_type,
			min_value = EXCLUDED.min_value,
			max_value = EXCLUDED.max_value,
			normalized = EXCLUDED.normalized
	`

	names := make([]string, len(defs))
	positions := make([]int32, len(defs))
	types := make([]string, len(defs))
	mins := make([]float64, len(defs))
	maxs := make([]float64, len(defs))
	normalized := make([]bool, len(defs))
	for i, d := range defs {
		names[i] = d.Name()
		positions[i] = int32(d.Feature)
		types[i] = string(d.DataType)
		mins[i] = d.Min
		maxs[i] = d.Max
		normalized[i] = d.Normalized
	}

	if _, err := r.pool.Exec(ctx, query, names, positions, types, mins, maxs, normalized); err != nil {
		return fmt.Errorf("seeding features: %w", err)
	}
	return nil
}

// Catalog loads the stored definitions as a catalog, seeding the defaults
// first when the table is empty.
func (r *FeatureRepository) Catalog(ctx context.Context) (*features.Catalog, error) {
	rows, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if err := r.Seed(ctx, features.DefaultDefinitions()); err != nil {
			return nil, err
		}
		return features.Default(), nil
	}
	return CatalogFromRows(rows)
}

// CatalogFromRows builds a catalog from stored definitions.
func CatalogFromRows(rows []FeatureDefinition) (*features.Catalog, error) {
	defs := make([]features.Definition, 0, len(rows))
	for _, row := range rows {
		f, err := features.Parse(row.Name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, features.Definition{
			Feature:    f,
			DataType:   features.DataType(row.DataType),
			Min:        row.Min,
			Max:        row.Max,
			Normalized: row.Normalized,
		})
	}
	return features.NewCatalog(defs)
}
