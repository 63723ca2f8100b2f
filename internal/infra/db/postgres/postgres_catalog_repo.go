package postgres

import (
	"context"

	"track-billing/internal/domain"
	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.ContentCatalog = (*catalogRepo)(nil)

// catalogRepo reads module ordering from the modules table.
type catalogRepo struct{ db querier }

func NewCatalogRepo(db querier) *catalogRepo {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) ModuleIDs(ctx context.Context, trackID string) ([]string, error) {
	const q = `SELECT id FROM modules WHERE track_id=$1 ORDER BY position ASC;`
	rows, err := r.db.Query(ctx, q, trackID)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

// AddModule appends a module at the given position. Used by seeding and tests.
func (r *catalogRepo) AddModule(ctx context.Context, trackID, moduleID string, position int, title string) error {
	const q = `INSERT INTO modules (id, track_id, position, title) VALUES ($1,$2,$3,$4);`
	_, err := r.db.Exec(ctx, q, moduleID, trackID, position, title)
	return mapWriteErr(err)
}
