package sqlite

const schema = `
-- Projects table
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_by TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Prompts table
CREATE TABLE IF NOT EXISTS prompts (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    slug TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    format TEXT NOT NULL DEFAULT 'text',
    template_engine TEXT NOT NULL DEFAULT 'jinja2',
    variables TEXT NOT NULL DEFAULT '[]',      -- JSON array of variable declarations
    tags TEXT NOT NULL DEFAULT '[]',           -- JSON array of lowercase strings
    category TEXT,
    is_shared INTEGER NOT NULL DEFAULT 0,
    current_version TEXT NOT NULL DEFAULT '1.0.0',
    created_by TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    deleted_at TEXT,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

-- Slug uniqueness holds among live prompts only; a soft-deleted prompt
-- releases its slug for reuse.
CREATE UNIQUE INDEX IF NOT EXISTS idx_prompts_project_slug_live
    ON prompts(project_id, slug) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_prompts_project ON prompts(project_id);
CREATE INDEX IF NOT EXISTS idx_prompts_shared ON prompts(is_shared) WHERE deleted_at IS NULL;

-- Prompt versions table (insert-only)
CREATE TABLE IF NOT EXISTS prompt_versions (
    id TEXT PRIMARY KEY,
    prompt_id TEXT NOT NULL,
    version TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    variables TEXT NOT NULL DEFAULT '[]',
    changelog TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'published',
    created_by TEXT,
    created_at TEXT NOT NULL,
    UNIQUE (prompt_id, version),
    FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_versions_prompt_created
    ON prompt_versions(prompt_id, created_at);

-- Prompt reference edges (source depends on target)
CREATE TABLE IF NOT EXISTS prompt_refs (
    id TEXT PRIMARY KEY,
    source_prompt_id TEXT NOT NULL,
    target_prompt_id TEXT NOT NULL,
    source_project_id TEXT,
    target_project_id TEXT,
    ref_type TEXT NOT NULL DEFAULT 'includes',
    override_config TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    UNIQUE (source_prompt_id, target_prompt_id, ref_type),
    FOREIGN KEY (source_prompt_id) REFERENCES prompts(id) ON DELETE CASCADE,
    FOREIGN KEY (target_prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_refs_source ON prompt_refs(source_prompt_id);
CREATE INDEX IF NOT EXISTS idx_refs_target ON prompt_refs(target_prompt_id);

-- Scenes table
CREATE TABLE IF NOT EXISTS scenes (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    slug TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    pipeline TEXT NOT NULL DEFAULT '{"steps":[]}',  -- JSON pipeline document
    merge_strategy TEXT NOT NULL DEFAULT 'concat',
    separator TEXT NOT NULL DEFAULT '',
    output_format TEXT,
    created_by TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (project_id, slug),
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_scenes_project ON scenes(project_id);

-- Call logs (append-only observability; no FKs so logs survive entity removal)
CREATE TABLE IF NOT EXISTS call_logs (
    id TEXT PRIMARY KEY,
    prompt_id TEXT,
    scene_id TEXT,
    prompt_version TEXT,
    caller_system TEXT,
    caller_ip TEXT,
    input_variables TEXT,                      -- JSON object
    rendered_content TEXT,
    token_count INTEGER NOT NULL DEFAULT 0,
    response_time_ms INTEGER NOT NULL DEFAULT 0,
    quality_score REAL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_logs_prompt ON call_logs(prompt_id);
CREATE INDEX IF NOT EXISTS idx_call_logs_scene ON call_logs(scene_id);
CREATE INDEX IF NOT EXISTS idx_call_logs_created ON call_logs(created_at);

-- API users
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    api_key TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);

-- Applied migrations
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`
