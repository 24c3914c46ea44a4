package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

const projectColumns = `id, slug, name, description, created_by, created_at, updated_at`

func (s *Store) CreateProject(ctx context.Context, p *types.Project) error {
	p.ID = newID(p.ID)
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (id, slug, name, description, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Slug, p.Name, p.Description, nullStr(p.CreatedBy),
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
	)
	if err != nil {
		return conflictOr(err, fmt.Sprintf("project slug %q already exists", p.Slug))
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE slug = ?`, slug)
	return scanProject(row)
}

func (s *Store) ListProjects(ctx context.Context, page store.Page) ([]types.Project, int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, page.Size, (page.Number-1)*page.Size)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, total, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *types.Project) error {
	p.UpdatedAt = time.Now()

	res, err := s.q.ExecContext(ctx, `
		UPDATE projects SET slug = ?, name = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, p.Slug, p.Name, p.Description, fmtTime(p.UpdatedAt), p.ID)
	if err != nil {
		return conflictOr(err, fmt.Sprintf("project slug %q already exists", p.Slug))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("project not found")
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("project not found")
	}
	return nil
}

func (s *Store) CountLivePrompts(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM prompts
		WHERE project_id = ? AND deleted_at IS NULL
	`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count live prompts: %w", err)
	}
	return n, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the per-entity scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*types.Project, error) {
	var (
		p         types.Project
		createdBy sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &createdBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.CreatedBy = strOrEmpty(createdBy)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
