// Command prompthub-seed loads a YAML fixture into the PromptHub store.
//
// The fixture lists users, projects, prompts, scenes and refs. Rows are
// matched by slug (users by API key) and already-present rows are skipped,
// so the tool is safe to run repeatedly against the same database.
//
// Usage:
//
//	prompthub-seed -fixture seed.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/HyxiaoGe/prompthub/config"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/projects"
	"github.com/HyxiaoGe/prompthub/prompts"
	"github.com/HyxiaoGe/prompthub/refs"
	"github.com/HyxiaoGe/prompthub/scene"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/store/sqlite"
	"github.com/HyxiaoGe/prompthub/template"
	"github.com/HyxiaoGe/prompthub/types"
)

func main() {
	fixturePath := flag.String("fixture", "seed.yaml", "YAML fixture file to load")
	flag.Parse()

	if err := run(*fixturePath); err != nil {
		fmt.Fprintf(os.Stderr, "prompthub-seed: %v\n", err)
		os.Exit(1)
	}
}

type fixture struct {
	Users    []userFixture    `yaml:"users"`
	Projects []projectFixture `yaml:"projects"`
	Prompts  []promptFixture  `yaml:"prompts"`
	Scenes   []sceneFixture   `yaml:"scenes"`
	Refs     []refFixture     `yaml:"refs"`
}

type userFixture struct {
	Username string `yaml:"username"`
	APIKey   string `yaml:"api_key"`
}

type projectFixture struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type promptFixture struct {
	Project        string            `yaml:"project"` // project slug
	Slug           string            `yaml:"slug"`
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Content        string            `yaml:"content"`
	Format         string            `yaml:"format"`
	TemplateEngine string            `yaml:"template_engine"`
	Variables      []variableFixture `yaml:"variables"`
	Tags           []string          `yaml:"tags"`
	Category       string            `yaml:"category"`
	IsShared       bool              `yaml:"is_shared"`
}

type variableFixture struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Required    *bool    `yaml:"required"`
	Default     any      `yaml:"default"`
	Description string   `yaml:"description"`
	EnumValues  []string `yaml:"enum_values"`
}

// def applies the declaration defaults the JSON decoder would: type
// "string", required true.
func (v variableFixture) def() types.VariableDef {
	d := types.VariableDef{
		Name:        v.Name,
		Type:        v.Type,
		Required:    true,
		Default:     v.Default,
		Description: v.Description,
		EnumValues:  v.EnumValues,
	}
	if d.Type == "" {
		d.Type = "string"
	}
	if v.Required != nil {
		d.Required = *v.Required
	}
	return d
}

type sceneFixture struct {
	Project       string        `yaml:"project"`
	Slug          string        `yaml:"slug"`
	Name          string        `yaml:"name"`
	Description   string        `yaml:"description"`
	MergeStrategy string        `yaml:"merge_strategy"`
	Separator     *string       `yaml:"separator"`
	OutputFormat  string        `yaml:"output_format"`
	Steps         []stepFixture `yaml:"steps"`
}

type stepFixture struct {
	ID        string            `yaml:"id"`
	Prompt    string            `yaml:"prompt"` // prompt slug within the scene's project
	Version   string            `yaml:"version"`
	Variables map[string]any    `yaml:"variables"`
	Condition *conditionFixture `yaml:"condition"`
	OutputKey string            `yaml:"output_key"`
}

type conditionFixture struct {
	Variable string `yaml:"variable"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

type refFixture struct {
	SourceProject string         `yaml:"source_project"`
	Source        string         `yaml:"source"`
	TargetProject string         `yaml:"target_project"` // defaults to source_project
	Target        string         `yaml:"target"`
	RefType       string         `yaml:"ref_type"`
	Override      map[string]any `yaml:"override_config"`
}

// seeder resolves fixture slugs against the store and creates what is
// missing through the service layer, so seeded rows get the same
// validation and initial versions as API-created ones.
type seeder struct {
	st       store.Store
	projects *projects.Service
	prompts  *prompts.Service
	scenes   *scene.Service
	refs     *refs.Service

	created int
	skipped int
}

func run(fixturePath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("parse fixture %s: %w", fixturePath, err)
	}

	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	renderer := template.NewRenderer()
	s := &seeder{
		st:       st,
		projects: projects.NewService(st),
		prompts:  prompts.NewService(st, renderer),
		scenes:   scene.NewService(st, renderer, nil),
		refs:     refs.NewService(st),
	}

	ctx := context.Background()
	if err := s.seed(ctx, fx); err != nil {
		return err
	}

	logger.Info("seed complete", "created", s.created, "skipped", s.skipped, "db_path", cfg.DBPath)
	return nil
}

func (s *seeder) seed(ctx context.Context, fx fixture) error {
	for _, u := range fx.Users {
		if err := s.seedUser(ctx, u); err != nil {
			return fmt.Errorf("user %q: %w", u.Username, err)
		}
	}
	for _, p := range fx.Projects {
		if err := s.seedProject(ctx, p); err != nil {
			return fmt.Errorf("project %q: %w", p.Slug, err)
		}
	}
	for _, p := range fx.Prompts {
		if err := s.seedPrompt(ctx, p); err != nil {
			return fmt.Errorf("prompt %q: %w", p.Slug, err)
		}
	}
	for _, sc := range fx.Scenes {
		if err := s.seedScene(ctx, sc); err != nil {
			return fmt.Errorf("scene %q: %w", sc.Slug, err)
		}
	}
	for _, r := range fx.Refs {
		if err := s.seedRef(ctx, r); err != nil {
			return fmt.Errorf("ref %s->%s: %w", r.Source, r.Target, err)
		}
	}
	return nil
}

func (s *seeder) seedUser(ctx context.Context, u userFixture) error {
	_, err := s.st.GetUserByAPIKey(ctx, u.APIKey)
	if err == nil {
		s.skip("user", u.Username)
		return nil
	}
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		return err
	}

	if err := s.st.CreateUser(ctx, &types.User{Username: u.Username, APIKey: u.APIKey}); err != nil {
		return err
	}
	s.create("user", u.Username)
	return nil
}

func (s *seeder) seedProject(ctx context.Context, p projectFixture) error {
	_, err := s.st.GetProjectBySlug(ctx, p.Slug)
	if err == nil {
		s.skip("project", p.Slug)
		return nil
	}
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		return err
	}

	if _, err := s.projects.Create(ctx, projects.CreateRequest{
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
	}); err != nil {
		return err
	}
	s.create("project", p.Slug)
	return nil
}

func (s *seeder) seedPrompt(ctx context.Context, p promptFixture) error {
	proj, err := s.st.GetProjectBySlug(ctx, p.Project)
	if err != nil {
		return fmt.Errorf("resolve project %q: %w", p.Project, err)
	}

	_, err = s.st.GetPromptBySlug(ctx, proj.ID, p.Slug)
	if err == nil {
		s.skip("prompt", p.Slug)
		return nil
	}
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		return err
	}

	vars := make([]types.VariableDef, 0, len(p.Variables))
	for _, v := range p.Variables {
		vars = append(vars, v.def())
	}
	if _, err := s.prompts.Create(ctx, prompts.CreateRequest{
		ProjectID:      proj.ID,
		Slug:           p.Slug,
		Name:           p.Name,
		Description:    p.Description,
		Content:        p.Content,
		Format:         p.Format,
		TemplateEngine: p.TemplateEngine,
		Variables:      vars,
		Tags:           p.Tags,
		Category:       p.Category,
		IsShared:       p.IsShared,
	}); err != nil {
		return err
	}
	s.create("prompt", p.Slug)
	return nil
}

func (s *seeder) seedScene(ctx context.Context, sc sceneFixture) error {
	proj, err := s.st.GetProjectBySlug(ctx, sc.Project)
	if err != nil {
		return fmt.Errorf("resolve project %q: %w", sc.Project, err)
	}

	_, err = s.st.GetSceneBySlug(ctx, proj.ID, sc.Slug)
	if err == nil {
		s.skip("scene", sc.Slug)
		return nil
	}
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		return err
	}

	pipeline, err := s.buildPipeline(ctx, proj.ID, sc.Steps)
	if err != nil {
		return err
	}
	if _, err := s.scenes.Create(ctx, scene.CreateRequest{
		ProjectID:     proj.ID,
		Slug:          sc.Slug,
		Name:          sc.Name,
		Description:   sc.Description,
		Pipeline:      pipeline,
		MergeStrategy: sc.MergeStrategy,
		Separator:     sc.Separator,
		OutputFormat:  sc.OutputFormat,
	}); err != nil {
		return err
	}
	s.create("scene", sc.Slug)
	return nil
}

// buildPipeline turns fixture steps, which name prompts by slug, into the
// stored pipeline document, which references them by ID.
func (s *seeder) buildPipeline(ctx context.Context, projectID string, steps []stepFixture) (json.RawMessage, error) {
	cfg := types.PipelineConfig{Steps: make([]types.PipelineStep, 0, len(steps))}
	for _, step := range steps {
		p, err := s.st.GetPromptBySlug(ctx, projectID, step.Prompt)
		if err != nil {
			return nil, fmt.Errorf("step %q: resolve prompt %q: %w", step.ID, step.Prompt, err)
		}

		ps := types.PipelineStep{
			ID:        step.ID,
			PromptRef: types.PromptRefSpec{PromptID: p.ID, Version: step.Version},
			Variables: step.Variables,
			OutputKey: step.OutputKey,
		}
		if step.Condition != nil {
			ps.Condition = &types.StepCondition{
				Variable: step.Condition.Variable,
				Operator: step.Condition.Operator,
				Value:    step.Condition.Value,
			}
		}
		cfg.Steps = append(cfg.Steps, ps)
	}
	return json.Marshal(cfg)
}

func (s *seeder) seedRef(ctx context.Context, r refFixture) error {
	targetProject := r.TargetProject
	if targetProject == "" {
		targetProject = r.SourceProject
	}

	source, err := s.resolvePrompt(ctx, r.SourceProject, r.Source)
	if err != nil {
		return err
	}
	target, err := s.resolvePrompt(ctx, targetProject, r.Target)
	if err != nil {
		return err
	}

	existing, err := s.st.ListRefsBySource(ctx, source.ID)
	if err != nil {
		return err
	}
	for _, ref := range existing {
		if ref.TargetPromptID == target.ID {
			s.skip("ref", r.Source+"->"+r.Target)
			return nil
		}
	}

	if _, err := s.refs.Create(ctx, refs.CreateRequest{
		SourcePromptID: source.ID,
		TargetPromptID: target.ID,
		RefType:        r.RefType,
		OverrideConfig: r.Override,
	}); err != nil {
		return err
	}
	s.create("ref", r.Source+"->"+r.Target)
	return nil
}

func (s *seeder) resolvePrompt(ctx context.Context, projectSlug, promptSlug string) (*types.Prompt, error) {
	proj, err := s.st.GetProjectBySlug(ctx, projectSlug)
	if err != nil {
		return nil, fmt.Errorf("resolve project %q: %w", projectSlug, err)
	}
	p, err := s.st.GetPromptBySlug(ctx, proj.ID, promptSlug)
	if err != nil {
		return nil, fmt.Errorf("resolve prompt %q in %q: %w", promptSlug, projectSlug, err)
	}
	return p, nil
}

func (s *seeder) create(kind, name string) {
	s.created++
	logger.Info("created", "kind", kind, "name", name)
}

func (s *seeder) skip(kind, name string) {
	s.skipped++
	logger.Info("already present, skipping", "kind", kind, "name", name)
}
