package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

const versionColumns = `id, prompt_id, version, content, variables, changelog,
	status, created_by, created_at`

func (s *Store) CreateVersion(ctx context.Context, v *types.PromptVersion) error {
	v.ID = newID(v.ID)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	variables, err := marshalJSON(v.Variables, "[]")
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO prompt_versions (
			id, prompt_id, version, content, variables, changelog,
			status, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.ID, v.PromptID, v.Version, v.Content, variables, v.Changelog,
		v.Status, nullStr(v.CreatedBy), fmtTime(v.CreatedAt),
	)
	if err != nil {
		return conflictOr(err, fmt.Sprintf("version %q already exists for prompt", v.Version))
	}
	return nil
}

func (s *Store) GetVersion(ctx context.Context, promptID, version string) (*types.PromptVersion, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM prompt_versions
		WHERE prompt_id = ? AND version = ?
	`, promptID, version)
	return scanVersion(row)
}

func (s *Store) ListVersions(ctx context.Context, promptID string) ([]types.PromptVersion, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM prompt_versions
		WHERE prompt_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, promptID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := make([]types.PromptVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func scanVersion(row scanner) (*types.PromptVersion, error) {
	var (
		v         types.PromptVersion
		variables string
		createdBy sql.NullString
		createdAt string
	)
	err := row.Scan(
		&v.ID, &v.PromptID, &v.Version, &v.Content, &variables, &v.Changelog,
		&v.Status, &createdBy, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("version not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan version: %w", err)
	}

	if err := unmarshalJSON(variables, &v.Variables); err != nil {
		return nil, err
	}
	v.CreatedBy = strOrEmpty(createdBy)
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}
