package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CATALOG ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create catalog entities table
-- Version: 001

-- The content hierarchy: roadmap > course > module > lesson > exercise.
-- Rows are reference data; the progress service reads them to resolve
-- parent/child relationships during completion propagation.
CREATE TABLE IF NOT EXISTS catalog_entities (
    entity_id VARCHAR(100) NOT NULL,
    entity_type VARCHAR(20) NOT NULL,
    parent_id VARCHAR(100),
    title VARCHAR(200) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (entity_type, entity_id),

    CONSTRAINT valid_entity_type CHECK (
        entity_type IN ('exercise', 'lesson', 'module', 'course', 'roadmap')
    ),
    -- Roadmaps are roots; everything else must have a parent.
    CONSTRAINT roadmap_has_no_parent CHECK (
        (entity_type = 'roadmap') = (parent_id IS NULL)
    )
);

-- Children lookup during propagation
CREATE INDEX IF NOT EXISTS idx_catalog_entities_parent ON catalog_entities(parent_id, entity_type);
`

const migration001Down = `
DROP TABLE IF EXISTS catalog_entities;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create user progress table
-- Version: 002

-- One row per (user, entity, type). The unique constraint plus the
-- conditional update in the repository give each row exactly one
-- pending-to-completed transition under concurrency.
CREATE TABLE IF NOT EXISTS user_progress (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id VARCHAR(100) NOT NULL,
    entity_id VARCHAR(100) NOT NULL,
    entity_type VARCHAR(20) NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE (user_id, entity_id, entity_type),

    CONSTRAINT valid_progress_entity_type CHECK (
        entity_type IN ('exercise', 'lesson', 'module', 'course', 'roadmap')
    ),
    CONSTRAINT completed_has_timestamp CHECK (
        (NOT completed) OR (completed_at IS NOT NULL)
    )
);

CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress(user_id);
CREATE INDEX IF NOT EXISTS idx_user_progress_user_type
    ON user_progress(user_id, entity_type) WHERE completed;
`

const migration002Down = `
DROP TABLE IF EXISTS user_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create achievement tables
-- Version: 003

-- Static achievement definitions, seeded on startup.
CREATE TABLE IF NOT EXISTS achievements (
    id VARCHAR(100) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    criterion_kind VARCHAR(30) NOT NULL,
    criterion_entity_type VARCHAR(20) NOT NULL,
    criterion_threshold INTEGER NOT NULL DEFAULT 0,
    criterion_entity_id VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_criterion_kind CHECK (
        criterion_kind IN ('count_completed', 'specific_entity')
    )
);

-- Awarded achievements. The unique constraint is what makes awarding
-- exactly-once: concurrent evaluators race on the insert and exactly one
-- wins.
CREATE TABLE IF NOT EXISTS user_achievements (
    id UUID PRIMARY KEY,
    user_id VARCHAR(100) NOT NULL,
    achievement_id VARCHAR(100) NOT NULL REFERENCES achievements(id),
    obtained_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id);
`

const migration003Down = `
DROP TABLE IF EXISTS user_achievements;
DROP TABLE IF EXISTS achievements;
`
