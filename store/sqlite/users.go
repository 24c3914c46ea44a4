package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	u.ID = newID(u.ID)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, username, api_key, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Username, u.APIKey, fmtTime(u.CreatedAt))
	if err != nil {
		return conflictOr(err, fmt.Sprintf("user %q already exists", u.Username))
	}
	return nil
}

func (s *Store) GetUserByAPIKey(ctx context.Context, apiKey string) (*types.User, error) {
	var (
		u         types.User
		createdAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, username, api_key, created_at FROM users WHERE api_key = ?
	`, apiKey).Scan(&u.ID, &u.Username, &u.APIKey, &createdAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}
