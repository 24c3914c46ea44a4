// Package versions implements prompt version publishing and retrieval.
//
// Published versions are immutable rows ordered by semver. Every prompt
// carries a mutable current_version pointer that only Publish moves, and it
// moves in the same transaction that inserts the version row.
package versions

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/HyxiaoGe/prompthub/cache"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// Bump levels accepted by Publish.
const (
	BumpPatch = "patch"
	BumpMinor = "minor"
	BumpMajor = "major"
)

// Current is the reserved version name resolved against the prompt's
// current_version pointer.
const Current = "current"

// PublishRequest carries the bump level and optional overrides for a publish.
// Nil Content and Variables mean "snapshot the prompt's live values".
type PublishRequest struct {
	Bump      string
	Content   *string
	Variables []types.VariableDef
	Changelog string
	By        string
}

// Service publishes and retrieves prompt versions.
type Service struct {
	store store.Store
	cache *cache.VersionCache
}

// NewService creates a version service. The cache may be nil.
func NewService(st store.Store, vc *cache.VersionCache) *Service {
	return &Service{store: st, cache: vc}
}

// NextVersion computes the successor of current under the given bump level.
// It requires strict MAJOR.MINOR.PATCH input, tolerating a leading "v".
func NextVersion(current, bump string) (string, error) {
	v, err := semver.StrictNewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return "", apperrors.Validation(fmt.Sprintf("invalid current version %q", current)).WithCause(err)
	}

	var next semver.Version
	switch bump {
	case BumpMajor:
		next = v.IncMajor()
	case BumpMinor:
		next = v.IncMinor()
	case BumpPatch:
		next = v.IncPatch()
	default:
		return "", apperrors.Validation(fmt.Sprintf("invalid bump %q: must be patch, minor or major", bump))
	}
	return next.String(), nil
}

// Publish inserts a new published version and advances the prompt's
// current_version pointer, atomically.
func (s *Service) Publish(ctx context.Context, promptID string, req PublishRequest) (*types.PromptVersion, error) {
	var published *types.PromptVersion

	err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		prompt, err := tx.GetPrompt(ctx, promptID)
		if err != nil {
			return err
		}

		next, err := NextVersion(prompt.CurrentVersion, req.Bump)
		if err != nil {
			return err
		}

		content := prompt.Content
		if req.Content != nil {
			content = *req.Content
		}
		variables := prompt.Variables
		if req.Variables != nil {
			variables = req.Variables
		}

		v := &types.PromptVersion{
			PromptID:  prompt.ID,
			Version:   next,
			Content:   content,
			Variables: variables,
			Changelog: req.Changelog,
			Status:    types.VersionStatusPublished,
			CreatedBy: req.By,
		}
		if err := tx.CreateVersion(ctx, v); err != nil {
			return err
		}
		if err := tx.SetCurrentVersion(ctx, prompt.ID, next); err != nil {
			return err
		}

		published = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Prime the cache only after commit; the row is immutable from here on.
	s.cache.Put(ctx, published)

	return published, nil
}

// Get returns one version of a prompt. The name "current" (or "") resolves
// through the prompt's current_version pointer; if that row is absent the
// prompt's live content stands in for it. A named version with no row is a
// not-found error.
func (s *Service) Get(ctx context.Context, promptID, version string) (*types.PromptVersion, error) {
	prompt, err := s.store.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}

	current := version == Current || version == ""
	name := version
	if current {
		name = prompt.CurrentVersion
	}

	if v, ok := s.cache.Get(ctx, promptID, name); ok {
		return v, nil
	}

	v, err := s.store.GetVersion(ctx, promptID, name)
	if err != nil {
		if current && apperrors.Is(err, apperrors.CodeNotFound) {
			// Rows can predate versioning; the live prompt is the fallback
			// and must carry the same content the row would have.
			return &types.PromptVersion{
				PromptID:  prompt.ID,
				Version:   prompt.CurrentVersion,
				Content:   prompt.Content,
				Variables: prompt.Variables,
				Status:    types.VersionStatusPublished,
				CreatedAt: prompt.UpdatedAt,
			}, nil
		}
		return nil, err
	}

	s.cache.Put(ctx, v)
	return v, nil
}

// List returns all versions of a prompt, newest first.
func (s *Service) List(ctx context.Context, promptID string) ([]types.PromptVersion, error) {
	if _, err := s.store.GetPrompt(ctx, promptID); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, promptID)
}
