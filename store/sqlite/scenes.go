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

const sceneColumns = `id, project_id, slug, name, description, pipeline,
	merge_strategy, separator, output_format, created_by, created_at, updated_at`

func (s *Store) CreateScene(ctx context.Context, sc *types.Scene) error {
	sc.ID = newID(sc.ID)
	now := time.Now()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = sc.CreatedAt

	pipeline, err := marshalPipeline(sc.Pipeline)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO scenes (
			id, project_id, slug, name, description, pipeline,
			merge_strategy, separator, output_format, created_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sc.ID, sc.ProjectID, sc.Slug, sc.Name, sc.Description, pipeline,
		sc.MergeStrategy, sc.Separator, nullStr(sc.OutputFormat), nullStr(sc.CreatedBy),
		fmtTime(sc.CreatedAt), fmtTime(sc.UpdatedAt),
	)
	if err != nil {
		return conflictOr(err, fmt.Sprintf("scene slug %q already exists in project", sc.Slug))
	}
	return nil
}

func (s *Store) GetScene(ctx context.Context, id string) (*types.Scene, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, id)
	return scanScene(row)
}

func (s *Store) GetSceneBySlug(ctx context.Context, projectID, slug string) (*types.Scene, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE project_id = ? AND slug = ?`,
		projectID, slug)
	return scanScene(row)
}

func (s *Store) ListScenes(ctx context.Context, projectID string, page store.Page) ([]types.Scene, int, error) {
	where := "1=1"
	var args []any
	if projectID != "" {
		where = "project_id = ?"
		args = append(args, projectID)
	}

	var total int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scenes WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scenes: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+sceneColumns+` FROM scenes WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, append(args, page.Size, (page.Number-1)*page.Size)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	scenes := make([]types.Scene, 0)
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, 0, err
		}
		scenes = append(scenes, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate scenes: %w", err)
	}
	return scenes, total, nil
}

func (s *Store) UpdateScene(ctx context.Context, sc *types.Scene) error {
	sc.UpdatedAt = time.Now()

	pipeline, err := marshalPipeline(sc.Pipeline)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE scenes SET
			slug = ?, name = ?, description = ?, pipeline = ?,
			merge_strategy = ?, separator = ?, output_format = ?, updated_at = ?
		WHERE id = ?
	`,
		sc.Slug, sc.Name, sc.Description, pipeline,
		sc.MergeStrategy, sc.Separator, nullStr(sc.OutputFormat), fmtTime(sc.UpdatedAt),
		sc.ID,
	)
	if err != nil {
		return conflictOr(err, fmt.Sprintf("scene slug %q already exists in project", sc.Slug))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("scene not found")
	}
	return nil
}

func (s *Store) DeleteScene(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("scene not found")
	}
	return nil
}

func (s *Store) ListScenesReferencingPrompt(ctx context.Context, promptID string) ([]types.Scene, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+sceneColumns+` FROM scenes
		WHERE EXISTS (
			SELECT 1 FROM json_each(scenes.pipeline, '$.steps')
			WHERE json_extract(json_each.value, '$.prompt_ref.prompt_id') = ?
		)
		ORDER BY created_at
	`, promptID)
	if err != nil {
		return nil, fmt.Errorf("list scenes referencing prompt: %w", err)
	}
	defer rows.Close()

	scenes := make([]types.Scene, 0)
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return scenes, nil
}

// marshalPipeline keeps the pipeline column shaped as {"steps":[...]} even
// when the steps slice is nil, so json_each over '$.steps' always works.
func marshalPipeline(p types.PipelineConfig) (string, error) {
	if p.Steps == nil {
		p.Steps = []types.PipelineStep{}
	}
	return marshalJSON(p, `{"steps":[]}`)
}

func scanScene(row scanner) (*types.Scene, error) {
	var (
		sc           types.Scene
		pipeline     string
		outputFormat sql.NullString
		createdBy    sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(
		&sc.ID, &sc.ProjectID, &sc.Slug, &sc.Name, &sc.Description, &pipeline,
		&sc.MergeStrategy, &sc.Separator, &outputFormat, &createdBy,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("scene not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan scene: %w", err)
	}

	if err := unmarshalJSON(pipeline, &sc.Pipeline); err != nil {
		return nil, err
	}
	sc.OutputFormat = strOrEmpty(outputFormat)
	sc.CreatedBy = strOrEmpty(createdBy)
	sc.CreatedAt = parseTime(createdAt)
	sc.UpdatedAt = parseTime(updatedAt)
	return &sc, nil
}
