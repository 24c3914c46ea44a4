// Package store defines the persistence port the service consumes.
//
// The interfaces decouple business logic from the storage implementation.
// Every lookup excludes soft-deleted prompts. Methods return the service's
// typed errors: a lookup miss is a NotFound error, a uniqueness violation is
// a Conflict error; callers that treat a miss as acceptable check the code.
package store

import (
	"context"

	"github.com/HyxiaoGe/prompthub/types"
)

// PromptFilter narrows and pages ListPrompts.
type PromptFilter struct {
	ProjectID  string
	Slug       string
	Tags       []string // any-overlap
	Category   string
	IsShared   *bool
	Search     string // case-insensitive substring over name and description
	SortBy     string // created_at | updated_at | name | slug | current_version
	Order      string // asc | desc
	Page       int    // 1-based
	PageSize   int
	SharedOnly bool // restrict to is_shared = true across projects
}

// Page carries 1-based pagination for plain list calls.
type Page struct {
	Number int
	Size   int
}

// ProjectStore persists projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error)
	ListProjects(ctx context.Context, page Page) ([]types.Project, int, error)
	UpdateProject(ctx context.Context, p *types.Project) error
	DeleteProject(ctx context.Context, id string) error

	// CountLivePrompts reports how many live prompts a project still owns.
	CountLivePrompts(ctx context.Context, projectID string) (int, error)
}

// PromptStore persists prompts. All lookups see live prompts only.
type PromptStore interface {
	CreatePrompt(ctx context.Context, p *types.Prompt) error
	GetPrompt(ctx context.Context, id string) (*types.Prompt, error)
	GetPromptBySlug(ctx context.Context, projectID, slug string) (*types.Prompt, error)

	// GetPromptsByIDs returns the live prompts among ids, keyed by ID.
	// Missing IDs are simply absent from the result.
	GetPromptsByIDs(ctx context.Context, ids []string) (map[string]*types.Prompt, error)

	ListPrompts(ctx context.Context, filter PromptFilter) ([]types.Prompt, int, error)
	UpdatePrompt(ctx context.Context, p *types.Prompt) error
	SoftDeletePrompt(ctx context.Context, id string) error

	// SetCurrentVersion atomically moves the prompt's current_version pointer.
	SetCurrentVersion(ctx context.Context, promptID, version string) error
}

// VersionStore persists immutable published prompt versions.
type VersionStore interface {
	CreateVersion(ctx context.Context, v *types.PromptVersion) error

	// GetVersion returns the exact version row of a prompt.
	GetVersion(ctx context.Context, promptID, version string) (*types.PromptVersion, error)

	// ListVersions returns all versions of a prompt, newest first.
	ListVersions(ctx context.Context, promptID string) ([]types.PromptVersion, error)
}

// RefStore persists prompt-to-prompt reference edges.
type RefStore interface {
	CreateRef(ctx context.Context, r *types.PromptRef) error
	GetRef(ctx context.Context, id string) (*types.PromptRef, error)
	DeleteRef(ctx context.Context, id string) error

	// ListRefsBySource returns the outgoing edges of a prompt.
	ListRefsBySource(ctx context.Context, promptID string) ([]types.PromptRef, error)

	// ListRefsByTarget returns the incoming edges of a prompt.
	ListRefsByTarget(ctx context.Context, promptID string) ([]types.PromptRef, error)

	// ListRefsTouching returns every ref whose source or target is in
	// promptIDs. The dependency resolver expands graphs through this.
	ListRefsTouching(ctx context.Context, promptIDs []string) ([]types.PromptRef, error)
}

// SceneStore persists scenes.
type SceneStore interface {
	CreateScene(ctx context.Context, s *types.Scene) error
	GetScene(ctx context.Context, id string) (*types.Scene, error)
	GetSceneBySlug(ctx context.Context, projectID, slug string) (*types.Scene, error)
	ListScenes(ctx context.Context, projectID string, page Page) ([]types.Scene, int, error)
	UpdateScene(ctx context.Context, s *types.Scene) error
	DeleteScene(ctx context.Context, id string) error

	// ListScenesReferencingPrompt returns scenes whose pipeline references
	// the prompt. Used by impact analysis.
	ListScenesReferencingPrompt(ctx context.Context, promptID string) ([]types.Scene, error)
}

// CallLogStore appends observability records.
type CallLogStore interface {
	CreateCallLog(ctx context.Context, l *types.CallLog) error
}

// UserStore resolves API callers.
type UserStore interface {
	CreateUser(ctx context.Context, u *types.User) error
	GetUserByAPIKey(ctx context.Context, apiKey string) (*types.User, error)
}

// Tx is the full set of entity operations, valid both on the store directly
// (auto-commit) and inside RunInTransaction.
type Tx interface {
	ProjectStore
	PromptStore
	VersionStore
	RefStore
	SceneStore
	CallLogStore
	UserStore
}

// Store is the persistence port.
//
// RunInTransaction executes fn within one database transaction:
//   - If fn returns nil, the transaction is committed
//   - If fn returns an error, the transaction is rolled back wholesale
//   - If fn panics, the transaction is rolled back and the panic re-raised
//
// Core write paths (prompt create with initial version, publish, fork,
// resolve with its call log) always run inside RunInTransaction so partial
// effects cannot leak.
type Store interface {
	Tx

	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
