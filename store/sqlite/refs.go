package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

const refColumns = `id, source_prompt_id, target_prompt_id, source_project_id,
	target_project_id, ref_type, override_config, created_at`

func (s *Store) CreateRef(ctx context.Context, r *types.PromptRef) error {
	r.ID = newID(r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	override, err := marshalJSON(r.OverrideConfig, "{}")
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO prompt_refs (
			id, source_prompt_id, target_prompt_id, source_project_id,
			target_project_id, ref_type, override_config, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.SourcePromptID, r.TargetPromptID, nullStr(r.SourceProjectID),
		nullStr(r.TargetProjectID), r.RefType, override, fmtTime(r.CreatedAt),
	)
	if err != nil {
		return conflictOr(err, "reference already exists")
	}
	return nil
}

func (s *Store) GetRef(ctx context.Context, id string) (*types.PromptRef, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+refColumns+` FROM prompt_refs WHERE id = ?`, id)
	return scanRef(row)
}

func (s *Store) DeleteRef(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM prompt_refs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ref: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ref: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("reference not found")
	}
	return nil
}

func (s *Store) ListRefsBySource(ctx context.Context, promptID string) ([]types.PromptRef, error) {
	return s.listRefs(ctx,
		`SELECT `+refColumns+` FROM prompt_refs WHERE source_prompt_id = ? ORDER BY created_at`,
		promptID)
}

func (s *Store) ListRefsByTarget(ctx context.Context, promptID string) ([]types.PromptRef, error) {
	return s.listRefs(ctx,
		`SELECT `+refColumns+` FROM prompt_refs WHERE target_prompt_id = ? ORDER BY created_at`,
		promptID)
}

func (s *Store) ListRefsTouching(ctx context.Context, promptIDs []string) ([]types.PromptRef, error) {
	if len(promptIDs) == 0 {
		return []types.PromptRef{}, nil
	}

	ph := placeholders(len(promptIDs))
	args := make([]any, 0, len(promptIDs)*2)
	for _, id := range promptIDs {
		args = append(args, id)
	}
	for _, id := range promptIDs {
		args = append(args, id)
	}

	return s.listRefs(ctx, `
		SELECT `+refColumns+` FROM prompt_refs
		WHERE source_prompt_id IN (`+ph+`) OR target_prompt_id IN (`+ph+`)
		ORDER BY created_at
	`, args...)
}

func (s *Store) listRefs(ctx context.Context, query string, args ...any) ([]types.PromptRef, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer rows.Close()

	refs := make([]types.PromptRef, 0)
	for rows.Next() {
		r, err := scanRef(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refs: %w", err)
	}
	return refs, nil
}

func scanRef(row scanner) (*types.PromptRef, error) {
	var (
		r             types.PromptRef
		sourceProject sql.NullString
		targetProject sql.NullString
		override      string
		createdAt     string
	)
	err := row.Scan(
		&r.ID, &r.SourcePromptID, &r.TargetPromptID, &sourceProject,
		&targetProject, &r.RefType, &override, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("reference not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan ref: %w", err)
	}

	if err := unmarshalJSON(override, &r.OverrideConfig); err != nil {
		return nil, err
	}
	r.SourceProjectID = strOrEmpty(sourceProject)
	r.TargetProjectID = strOrEmpty(targetProject)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}
