package projects

import (
	"context"
	"database/sql"
	"errors"

	"docvault-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, p Project) error {
	const query = `INSERT INTO projects (id, name, created_by, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.DB.ExecContext(ctx, query, p.ID, p.Name, p.CreatedBy, p.CreatedAt)
	return err
}

func (r *PGRepo) Get(ctx context.Context, id string) (Project, error) {
	const query = `SELECT id, name, created_by, created_at FROM projects WHERE id = $1`
	var p Project
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidText(err) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return p, nil
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Project, error) {
	const query = `
SELECT id, name, created_by, created_at
FROM projects
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
