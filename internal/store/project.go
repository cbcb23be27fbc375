package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhive/apiserver/types"
)

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) List(ctx context.Context, offset, limit int) ([]types.Project, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM projects`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, title, description, status, created_by, created_at, updated_at
		FROM projects
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0, limit)
	for rows.Next() {
		var project types.Project
		if err := rows.Scan(
			&project.ID,
			&project.Title,
			&project.Description,
			&project.Status,
			&project.CreatedBy,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	const query = `
		SELECT id, title, description, status, created_by, created_at, updated_at
		FROM projects
		WHERE id = $1`
	var project types.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Title,
		&project.Description,
		&project.Status,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	const query = `
		INSERT INTO projects (title, description, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		project.Title,
		project.Description,
		project.Status,
		project.CreatedBy,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

// Update rewrites the mutable project fields. The creator reference is
// immutable and deliberately not part of the statement.
func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()

	const query = `
		UPDATE projects
		SET title = $1,
			description = $2,
			status = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Title,
		project.Description,
		project.Status,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

// Delete removes a project. Its tasks, their comments and their attachment
// rows go with it through the schema's cascade rules.
func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM projects WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
