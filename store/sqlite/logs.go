package sqlite

import (
	"context"
	"time"

	"github.com/HyxiaoGe/prompthub/types"
)

func (s *Store) CreateCallLog(ctx context.Context, l *types.CallLog) error {
	l.ID = newID(l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	inputVars, err := marshalJSON(l.InputVariables, "{}")
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO call_logs (
			id, prompt_id, scene_id, prompt_version, caller_system, caller_ip,
			input_variables, rendered_content, token_count, response_time_ms,
			quality_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, nullStr(l.PromptID), nullStr(l.SceneID), nullStr(l.PromptVersion),
		nullStr(l.CallerSystem), nullStr(l.CallerIP),
		inputVars, nullStr(l.RenderedContent), l.TokenCount, l.ResponseTimeMs,
		l.QualityScore, fmtTime(l.CreatedAt),
	)
	return err
}
