// Package storetest provides an in-memory store.Store for service tests.
//
// Semantics mirror the SQLite implementation: lookups exclude soft-deleted
// prompts, uniqueness and referential violations come back as Conflict
// errors, misses as NotFound, and RunInTransaction restores the previous
// state wholesale when fn fails or panics.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// Store is the in-memory implementation. The zero value is not usable; call
// New.
type Store struct {
	mu sync.RWMutex

	seq       int64
	projects  map[string]*types.Project
	prompts   map[string]*types.Prompt
	versions  map[string]*types.PromptVersion // keyed promptID+"@"+version
	refs      map[string]*types.PromptRef
	scenes    map[string]*types.Scene
	users     map[string]*types.User
	callLogs  []types.CallLog
	insertSeq map[string]int64 // entity ID -> insertion order, breaks timestamp ties
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		projects:  make(map[string]*types.Project),
		prompts:   make(map[string]*types.Prompt),
		versions:  make(map[string]*types.PromptVersion),
		refs:      make(map[string]*types.PromptRef),
		scenes:    make(map[string]*types.Scene),
		users:     make(map[string]*types.User),
		insertSeq: make(map[string]int64),
	}
}

// Close implements store.Store; there is nothing to release.
func (s *Store) Close() error { return nil }

// RunInTransaction snapshots the state, runs fn against the store itself and
// restores the snapshot when fn returns an error or panics.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
	}()

	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// CallLogs returns a copy of every call log written so far, in write order.
func (s *Store) CallLogs() []types.CallLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CallLog, len(s.callLogs))
	copy(out, s.callLogs)
	return out
}

// ---- projects ----

func (s *Store) CreateProject(ctx context.Context, p *types.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.projects {
		if existing.Slug == p.Slug {
			return apperrors.Conflict(fmt.Sprintf("project slug %q already exists", p.Slug))
		}
	}
	fillID(&p.ID)
	fillCreated(&p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	s.projects[p.ID] = clone(p)
	s.insertSeq[p.ID] = s.next()
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, apperrors.NotFound("project not found")
	}
	return clone(p), nil
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.Slug == slug {
			return clone(p), nil
		}
	}
	return nil, apperrors.NotFound("project not found")
}

func (s *Store) ListProjects(ctx context.Context, page store.Page) ([]types.Project, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]types.Project, 0, len(s.projects))
	for _, p := range s.projects {
		all = append(all, *clone(p))
	}
	sortNewestFirst(all, s.insertSeq, func(p types.Project) (time.Time, string) { return p.CreatedAt, p.ID })
	return paginate(all, page), len(all), nil
}

func (s *Store) UpdateProject(ctx context.Context, p *types.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return apperrors.NotFound("project not found")
	}
	for _, existing := range s.projects {
		if existing.ID != p.ID && existing.Slug == p.Slug {
			return apperrors.Conflict(fmt.Sprintf("project slug %q already exists", p.Slug))
		}
	}
	p.UpdatedAt = time.Now()
	s.projects[p.ID] = clone(p)
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return apperrors.NotFound("project not found")
	}
	delete(s.projects, id)

	// Cascade the way the schema's foreign keys do.
	for pid, p := range s.prompts {
		if p.ProjectID != id {
			continue
		}
		delete(s.prompts, pid)
		for key, v := range s.versions {
			if v.PromptID == pid {
				delete(s.versions, key)
			}
		}
		for rid, r := range s.refs {
			if r.SourcePromptID == pid || r.TargetPromptID == pid {
				delete(s.refs, rid)
			}
		}
	}
	for sid, sc := range s.scenes {
		if sc.ProjectID == id {
			delete(s.scenes, sid)
		}
	}
	return nil
}

func (s *Store) CountLivePrompts(ctx context.Context, projectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.prompts {
		if p.ProjectID == projectID && p.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

// ---- prompts ----

func (s *Store) CreatePrompt(ctx context.Context, p *types.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[p.ProjectID]; !ok {
		return apperrors.Conflict("project does not exist")
	}
	for _, existing := range s.prompts {
		if existing.DeletedAt == nil && existing.ProjectID == p.ProjectID && existing.Slug == p.Slug {
			return apperrors.Conflict(fmt.Sprintf("prompt slug %q already exists in project", p.Slug))
		}
	}
	fillID(&p.ID)
	fillCreated(&p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	s.prompts[p.ID] = clone(p)
	s.insertSeq[p.ID] = s.next()
	return nil
}

func (s *Store) GetPrompt(ctx context.Context, id string) (*types.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[id]
	if !ok || p.DeletedAt != nil {
		return nil, apperrors.NotFound("prompt not found")
	}
	return clone(p), nil
}

func (s *Store) GetPromptBySlug(ctx context.Context, projectID, slug string) (*types.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.prompts {
		if p.DeletedAt == nil && p.ProjectID == projectID && p.Slug == slug {
			return clone(p), nil
		}
	}
	return nil, apperrors.NotFound("prompt not found")
}

func (s *Store) GetPromptsByIDs(ctx context.Context, ids []string) (map[string]*types.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*types.Prompt, len(ids))
	for _, id := range ids {
		if p, ok := s.prompts[id]; ok && p.DeletedAt == nil {
			result[id] = clone(p)
		}
	}
	return result, nil
}

func (s *Store) ListPrompts(ctx context.Context, filter store.PromptFilter) ([]types.Prompt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]types.Prompt, 0)
	for _, p := range s.prompts {
		if promptMatches(p, filter) {
			matched = append(matched, *clone(p))
		}
	}

	sortPrompts(matched, filter.SortBy, filter.Order, s.insertSeq)

	total := len(matched)
	page := store.Page{Number: filter.Page, Size: filter.PageSize}
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = 20
	}
	return paginate(matched, page), total, nil
}

func (s *Store) UpdatePrompt(ctx context.Context, p *types.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.prompts[p.ID]
	if !ok || existing.DeletedAt != nil {
		return apperrors.NotFound("prompt not found")
	}
	for _, other := range s.prompts {
		if other.ID != p.ID && other.DeletedAt == nil &&
			other.ProjectID == existing.ProjectID && other.Slug == p.Slug {
			return apperrors.Conflict(fmt.Sprintf("prompt slug %q already exists in project", p.Slug))
		}
	}
	p.UpdatedAt = time.Now()
	s.prompts[p.ID] = clone(p)
	return nil
}

func (s *Store) SoftDeletePrompt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[id]
	if !ok || p.DeletedAt != nil {
		return apperrors.NotFound("prompt not found")
	}
	now := time.Now()
	p.DeletedAt = &now
	p.UpdatedAt = now
	return nil
}

func (s *Store) SetCurrentVersion(ctx context.Context, promptID, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[promptID]
	if !ok || p.DeletedAt != nil {
		return apperrors.NotFound("prompt not found")
	}
	p.CurrentVersion = version
	p.UpdatedAt = time.Now()
	return nil
}

// ---- versions ----

func versionKey(promptID, version string) string { return promptID + "@" + version }

func (s *Store) CreateVersion(ctx context.Context, v *types.PromptVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[v.PromptID]; !ok {
		return apperrors.Conflict("prompt does not exist")
	}
	key := versionKey(v.PromptID, v.Version)
	if _, ok := s.versions[key]; ok {
		return apperrors.Conflict(fmt.Sprintf("version %q already exists for prompt", v.Version))
	}
	fillID(&v.ID)
	fillCreated(&v.CreatedAt)
	s.versions[key] = clone(v)
	s.insertSeq[v.ID] = s.next()
	return nil
}

func (s *Store) GetVersion(ctx context.Context, promptID, version string) (*types.PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[versionKey(promptID, version)]
	if !ok {
		return nil, apperrors.NotFound("version not found")
	}
	return clone(v), nil
}

func (s *Store) ListVersions(ctx context.Context, promptID string) ([]types.PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.PromptVersion, 0)
	for _, v := range s.versions {
		if v.PromptID == promptID {
			out = append(out, *clone(v))
		}
	}
	sortNewestFirst(out, s.insertSeq, func(v types.PromptVersion) (time.Time, string) { return v.CreatedAt, v.ID })
	return out, nil
}

// ---- refs ----

func (s *Store) CreateRef(ctx context.Context, r *types.PromptRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[r.SourcePromptID]; !ok {
		return apperrors.Conflict("source prompt does not exist")
	}
	if _, ok := s.prompts[r.TargetPromptID]; !ok {
		return apperrors.Conflict("target prompt does not exist")
	}
	for _, existing := range s.refs {
		if existing.SourcePromptID == r.SourcePromptID &&
			existing.TargetPromptID == r.TargetPromptID &&
			existing.RefType == r.RefType {
			return apperrors.Conflict("reference already exists")
		}
	}
	fillID(&r.ID)
	fillCreated(&r.CreatedAt)
	s.refs[r.ID] = clone(r)
	s.insertSeq[r.ID] = s.next()
	return nil
}

func (s *Store) GetRef(ctx context.Context, id string) (*types.PromptRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.refs[id]
	if !ok {
		return nil, apperrors.NotFound("reference not found")
	}
	return clone(r), nil
}

func (s *Store) DeleteRef(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refs[id]; !ok {
		return apperrors.NotFound("reference not found")
	}
	delete(s.refs, id)
	return nil
}

func (s *Store) ListRefsBySource(ctx context.Context, promptID string) ([]types.PromptRef, error) {
	return s.listRefs(func(r *types.PromptRef) bool { return r.SourcePromptID == promptID })
}

func (s *Store) ListRefsByTarget(ctx context.Context, promptID string) ([]types.PromptRef, error) {
	return s.listRefs(func(r *types.PromptRef) bool { return r.TargetPromptID == promptID })
}

func (s *Store) ListRefsTouching(ctx context.Context, promptIDs []string) ([]types.PromptRef, error) {
	set := make(map[string]bool, len(promptIDs))
	for _, id := range promptIDs {
		set[id] = true
	}
	return s.listRefs(func(r *types.PromptRef) bool {
		return set[r.SourcePromptID] || set[r.TargetPromptID]
	})
}

func (s *Store) listRefs(match func(*types.PromptRef) bool) ([]types.PromptRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.PromptRef, 0)
	for _, r := range s.refs {
		if match(r) {
			out = append(out, *clone(r))
		}
	}
	// Oldest first, as the SQL store orders them.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.insertSeq[out[i].ID] < s.insertSeq[out[j].ID]
	})
	return out, nil
}

// ---- scenes ----

func (s *Store) CreateScene(ctx context.Context, sc *types.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[sc.ProjectID]; !ok {
		return apperrors.Conflict("project does not exist")
	}
	for _, existing := range s.scenes {
		if existing.ProjectID == sc.ProjectID && existing.Slug == sc.Slug {
			return apperrors.Conflict(fmt.Sprintf("scene slug %q already exists in project", sc.Slug))
		}
	}
	fillID(&sc.ID)
	fillCreated(&sc.CreatedAt)
	sc.UpdatedAt = sc.CreatedAt
	if sc.Pipeline.Steps == nil {
		sc.Pipeline.Steps = []types.PipelineStep{}
	}
	s.scenes[sc.ID] = clone(sc)
	s.insertSeq[sc.ID] = s.next()
	return nil
}

func (s *Store) GetScene(ctx context.Context, id string) (*types.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenes[id]
	if !ok {
		return nil, apperrors.NotFound("scene not found")
	}
	return clone(sc), nil
}

func (s *Store) GetSceneBySlug(ctx context.Context, projectID, slug string) (*types.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.scenes {
		if sc.ProjectID == projectID && sc.Slug == slug {
			return clone(sc), nil
		}
	}
	return nil, apperrors.NotFound("scene not found")
}

func (s *Store) ListScenes(ctx context.Context, projectID string, page store.Page) ([]types.Scene, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Scene, 0)
	for _, sc := range s.scenes {
		if projectID == "" || sc.ProjectID == projectID {
			out = append(out, *clone(sc))
		}
	}
	sortNewestFirst(out, s.insertSeq, func(sc types.Scene) (time.Time, string) { return sc.CreatedAt, sc.ID })
	return paginate(out, page), len(out), nil
}

func (s *Store) UpdateScene(ctx context.Context, sc *types.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.scenes[sc.ID]
	if !ok {
		return apperrors.NotFound("scene not found")
	}
	for _, other := range s.scenes {
		if other.ID != sc.ID && other.ProjectID == existing.ProjectID && other.Slug == sc.Slug {
			return apperrors.Conflict(fmt.Sprintf("scene slug %q already exists in project", sc.Slug))
		}
	}
	sc.UpdatedAt = time.Now()
	if sc.Pipeline.Steps == nil {
		sc.Pipeline.Steps = []types.PipelineStep{}
	}
	s.scenes[sc.ID] = clone(sc)
	return nil
}

func (s *Store) DeleteScene(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenes[id]; !ok {
		return apperrors.NotFound("scene not found")
	}
	delete(s.scenes, id)
	return nil
}

func (s *Store) ListScenesReferencingPrompt(ctx context.Context, promptID string) ([]types.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Scene, 0)
	for _, sc := range s.scenes {
		for _, step := range sc.Pipeline.Steps {
			if step.PromptRef.PromptID == promptID {
				out = append(out, *clone(sc))
				break
			}
		}
	}
	sortNewestFirst(out, s.insertSeq, func(sc types.Scene) (time.Time, string) { return sc.CreatedAt, sc.ID })
	return out, nil
}

// ---- call logs ----

func (s *Store) CreateCallLog(ctx context.Context, l *types.CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fillID(&l.ID)
	fillCreated(&l.CreatedAt)
	s.callLogs = append(s.callLogs, *clone(l))
	return nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.APIKey == u.APIKey {
			return apperrors.Conflict(fmt.Sprintf("user %q already exists", u.Username))
		}
	}
	fillID(&u.ID)
	fillCreated(&u.CreatedAt)
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByAPIKey(ctx context.Context, apiKey string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.APIKey == apiKey {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

// ---- internals ----

type snapshot struct {
	projects  map[string]*types.Project
	prompts   map[string]*types.Prompt
	versions  map[string]*types.PromptVersion
	refs      map[string]*types.PromptRef
	scenes    map[string]*types.Scene
	users     map[string]*types.User
	callLogs  []types.CallLog
	insertSeq map[string]int64
	seq       int64
}

func (s *Store) snapshotLocked() snapshot {
	return snapshot{
		projects:  cloneMap(s.projects),
		prompts:   cloneMap(s.prompts),
		versions:  cloneMap(s.versions),
		refs:      cloneMap(s.refs),
		scenes:    cloneMap(s.scenes),
		users:     copyUsers(s.users),
		callLogs:  append([]types.CallLog(nil), s.callLogs...),
		insertSeq: copySeq(s.insertSeq),
		seq:       s.seq,
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = snap.projects
	s.prompts = snap.prompts
	s.versions = snap.versions
	s.refs = snap.refs
	s.scenes = snap.scenes
	s.users = snap.users
	s.callLogs = snap.callLogs
	s.insertSeq = snap.insertSeq
	s.seq = snap.seq
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// sortNewestFirst orders by CreatedAt descending, ties broken by reverse
// insertion order so the latest insert wins, matching the SQL rowid tiebreak.
func sortNewestFirst[T any](items []T, seq map[string]int64, key func(T) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return seq[idi] > seq[idj]
	})
}

func promptMatches(p *types.Prompt, filter store.PromptFilter) bool {
	if p.DeletedAt != nil {
		return false
	}
	if filter.ProjectID != "" && p.ProjectID != filter.ProjectID {
		return false
	}
	if filter.Slug != "" && p.Slug != filter.Slug {
		return false
	}
	if filter.Category != "" && p.Category != filter.Category {
		return false
	}
	if filter.IsShared != nil && p.IsShared != *filter.IsShared {
		return false
	}
	if filter.SharedOnly && !p.IsShared {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	if len(filter.Tags) > 0 {
		overlap := false
		for _, want := range filter.Tags {
			for _, have := range p.Tags {
				if want == have {
					overlap = true
				}
			}
		}
		if !overlap {
			return false
		}
	}
	return true
}

func sortPrompts(prompts []types.Prompt, sortBy, order string, seq map[string]int64) {
	asc := strings.EqualFold(order, "asc")
	sort.SliceStable(prompts, func(i, j int) bool {
		a, b := prompts[i], prompts[j]
		var less bool
		switch sortBy {
		case "updated_at":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		case "name":
			less = a.Name < b.Name
		case "slug":
			less = a.Slug < b.Slug
		case "current_version":
			less = a.CurrentVersion < b.CurrentVersion
		default:
			if a.CreatedAt.Equal(b.CreatedAt) {
				less = seq[a.ID] < seq[b.ID]
			} else {
				less = a.CreatedAt.Before(b.CreatedAt)
			}
		}
		if asc {
			return less
		}
		return !less
	})
}

func paginate[T any](items []T, page store.Page) []T {
	number, size := page.Number, page.Size
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = 20
	}
	start := (number - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// clone deep-copies an entity via JSON, the same trick the redis-backed
// cache relies on for isolation.
func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

func cloneMap[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

// copyUsers copies by value: User.APIKey is json:"-" and would be lost in a
// JSON round trip.
func copyUsers(m map[string]*types.User) map[string]*types.User {
	out := make(map[string]*types.User, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func copySeq(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func fillID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func fillCreated(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

