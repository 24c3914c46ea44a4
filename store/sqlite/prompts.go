package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

const promptColumns = `id, project_id, slug, name, description, content, format,
	template_engine, variables, tags, category, is_shared, current_version,
	created_by, created_at, updated_at, deleted_at`

func (s *Store) CreatePrompt(ctx context.Context, p *types.Prompt) error {
	p.ID = newID(p.ID)
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	variables, err := marshalJSON(p.Variables, "[]")
	if err != nil {
		return err
	}
	tags, err := marshalJSON(p.Tags, "[]")
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO prompts (
			id, project_id, slug, name, description, content, format,
			template_engine, variables, tags, category, is_shared,
			current_version, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.ProjectID, p.Slug, p.Name, p.Description, p.Content, p.Format,
		p.TemplateEngine, variables, tags, nullStr(p.Category), boolToInt(p.IsShared),
		p.CurrentVersion, nullStr(p.CreatedBy), fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
	)
	if err != nil {
		return conflictOr(err, fmt.Sprintf("prompt slug %q already exists in project", p.Slug))
	}
	return nil
}

func (s *Store) GetPrompt(ctx context.Context, id string) (*types.Prompt, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+promptColumns+` FROM prompts
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	return scanPrompt(row)
}

func (s *Store) GetPromptBySlug(ctx context.Context, projectID, slug string) (*types.Prompt, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+promptColumns+` FROM prompts
		WHERE project_id = ? AND slug = ? AND deleted_at IS NULL
	`, projectID, slug)
	return scanPrompt(row)
}

func (s *Store) GetPromptsByIDs(ctx context.Context, ids []string) (map[string]*types.Prompt, error) {
	result := make(map[string]*types.Prompt, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+promptColumns+` FROM prompts
		WHERE id IN (`+placeholders(len(ids))+`) AND deleted_at IS NULL
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("get prompts by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompts: %w", err)
	}
	return result, nil
}

func (s *Store) ListPrompts(ctx context.Context, filter store.PromptFilter) ([]types.Prompt, int, error) {
	where, args := buildPromptWhere(filter)

	var total int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prompts WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	query := fmt.Sprintf(
		`SELECT %s FROM prompts WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		promptColumns, where, promptSortColumn(filter.SortBy), sortDirection(filter.Order),
	)
	rows, err := s.q.QueryContext(ctx, query, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]types.Prompt, 0)
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, 0, err
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate prompts: %w", err)
	}
	return prompts, total, nil
}

func (s *Store) UpdatePrompt(ctx context.Context, p *types.Prompt) error {
	p.UpdatedAt = time.Now()

	variables, err := marshalJSON(p.Variables, "[]")
	if err != nil {
		return err
	}
	tags, err := marshalJSON(p.Tags, "[]")
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE prompts SET
			slug = ?, name = ?, description = ?, content = ?, format = ?,
			template_engine = ?, variables = ?, tags = ?, category = ?,
			is_shared = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		p.Slug, p.Name, p.Description, p.Content, p.Format,
		p.TemplateEngine, variables, tags, nullStr(p.Category),
		boolToInt(p.IsShared), fmtTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return conflictOr(err, fmt.Sprintf("prompt slug %q already exists in project", p.Slug))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("prompt not found")
	}
	return nil
}

func (s *Store) SoftDeletePrompt(ctx context.Context, id string) error {
	now := time.Now()
	res, err := s.q.ExecContext(ctx, `
		UPDATE prompts SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, fmtTime(now), fmtTime(now), id)
	if err != nil {
		return fmt.Errorf("soft-delete prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft-delete prompt: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("prompt not found")
	}
	return nil
}

func (s *Store) SetCurrentVersion(ctx context.Context, promptID, version string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE prompts SET current_version = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, version, fmtTime(time.Now()), promptID)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("prompt not found")
	}
	return nil
}

// buildPromptWhere assembles the WHERE clause for ListPrompts. Tag matching
// is any-overlap over the JSON tags array.
func buildPromptWhere(filter store.PromptFilter) (string, []any) {
	conds := []string{"deleted_at IS NULL"}
	var args []any

	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Slug != "" {
		conds = append(conds, "slug = ?")
		args = append(args, filter.Slug)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.IsShared != nil {
		conds = append(conds, "is_shared = ?")
		args = append(args, boolToInt(*filter.IsShared))
	}
	if filter.SharedOnly {
		conds = append(conds, "is_shared = 1")
	}
	if filter.Search != "" {
		conds = append(conds, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if len(filter.Tags) > 0 {
		conds = append(conds,
			"EXISTS (SELECT 1 FROM json_each(prompts.tags) WHERE json_each.value IN ("+placeholders(len(filter.Tags))+"))")
		for _, tag := range filter.Tags {
			args = append(args, tag)
		}
	}

	return strings.Join(conds, " AND "), args
}

// promptSortColumn maps the requested sort field onto a column, falling back
// to created_at. The service layer rejects unknown fields before they reach
// here.
func promptSortColumn(sortBy string) string {
	switch sortBy {
	case "created_at", "updated_at", "name", "slug", "current_version":
		return sortBy
	default:
		return "created_at"
	}
}

func sortDirection(order string) string {
	if strings.EqualFold(order, "asc") {
		return "ASC"
	}
	return "DESC"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanPrompt(row scanner) (*types.Prompt, error) {
	var (
		p         types.Prompt
		variables string
		tags      string
		category  sql.NullString
		isShared  int
		createdBy sql.NullString
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.ProjectID, &p.Slug, &p.Name, &p.Description, &p.Content,
		&p.Format, &p.TemplateEngine, &variables, &tags, &category, &isShared,
		&p.CurrentVersion, &createdBy, &createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("prompt not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan prompt: %w", err)
	}

	if err := unmarshalJSON(variables, &p.Variables); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(tags, &p.Tags); err != nil {
		return nil, err
	}
	p.Category = strOrEmpty(category)
	p.IsShared = isShared != 0
	p.CreatedBy = strOrEmpty(createdBy)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.DeletedAt = parseNullTime(deletedAt)
	return &p, nil
}
