// Package postgres implements PostgreSQL persistence layer for Urok Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STATUS RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create status records table
-- Version: 001
-- The single source of truth for entity lifecycles. Records are append-only:
-- no UPDATE or DELETE ever touches a row except the owner-deletion cascade.

CREATE TABLE IF NOT EXISTS status_records (
    id UUID PRIMARY KEY,
    owner_kind VARCHAR(20) NOT NULL,
    owner_id UUID NOT NULL,
    status VARCHAR(30) NOT NULL,
    context JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_owner_kind CHECK (owner_kind IN ('lesson', 'lesson_plan', 'milestone', 'goal'))
);

-- History reads and current-record lookups always filter by owner.
CREATE INDEX IF NOT EXISTS idx_status_records_owner ON status_records(owner_kind, owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_status_records_created_at ON status_records(created_at DESC);

-- Owner tables cannot FK into a polymorphic table, so the deletion cascade
-- is a trigger installed on each owner table (see later migrations).
CREATE OR REPLACE FUNCTION cascade_delete_status_records()
RETURNS TRIGGER AS $$
BEGIN
    DELETE FROM status_records
    WHERE owner_kind = TG_ARGV[0] AND owner_id = OLD.id;
    RETURN OLD;
END;
$$ LANGUAGE plpgsql;

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';
`

const migration001Down = `
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP FUNCTION IF EXISTS cascade_delete_status_records();
DROP TABLE IF EXISTS status_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE LESSONS AND GOALS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create lessons and goals tables
-- Version: 002
-- A lesson is created from an accepted tutor quote; goals hang off lessons.
-- current_status_id deliberately has no FK: the history is authoritative and
-- the reconciliation job repairs a diverged pointer instead of the schema
-- rejecting it.

CREATE TABLE IF NOT EXISTS lessons (
    id UUID PRIMARY KEY,
    quote_id UUID NOT NULL,
    request_id UUID,
    student_id UUID NOT NULL,
    tutor_id UUID NOT NULL,
    subject VARCHAR(50) NOT NULL,
    scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_minutes INTEGER NOT NULL,
    current_status_id UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_duration CHECK (duration_minutes BETWEEN 15 AND 240)
);

CREATE INDEX IF NOT EXISTS idx_lessons_student ON lessons(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_lessons_tutor ON lessons(tutor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_lessons_quote ON lessons(quote_id);
CREATE INDEX IF NOT EXISTS idx_lessons_current_status ON lessons(current_status_id);

DROP TRIGGER IF EXISTS update_lessons_updated_at ON lessons;
CREATE TRIGGER update_lessons_updated_at
    BEFORE UPDATE ON lessons
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();

DROP TRIGGER IF EXISTS cascade_lessons_status_records ON lessons;
CREATE TRIGGER cascade_lessons_status_records
    BEFORE DELETE ON lessons
    FOR EACH ROW
    EXECUTE FUNCTION cascade_delete_status_records('lesson');

-- Goals attached to lessons
CREATE TABLE IF NOT EXISTS goals (
    id UUID PRIMARY KEY,
    lesson_id UUID NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    description VARCHAR(500) NOT NULL,
    current_status_id UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_goals_lesson ON goals(lesson_id, created_at);

DROP TRIGGER IF EXISTS update_goals_updated_at ON goals;
CREATE TRIGGER update_goals_updated_at
    BEFORE UPDATE ON goals
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();

DROP TRIGGER IF EXISTS cascade_goals_status_records ON goals;
CREATE TRIGGER cascade_goals_status_records
    BEFORE DELETE ON goals
    FOR EACH ROW
    EXECUTE FUNCTION cascade_delete_status_records('goal');
`

const migration002Down = `
DROP TRIGGER IF EXISTS cascade_goals_status_records ON goals;
DROP TRIGGER IF EXISTS update_goals_updated_at ON goals;
DROP TABLE IF EXISTS goals;
DROP TRIGGER IF EXISTS cascade_lessons_status_records ON lessons;
DROP TRIGGER IF EXISTS update_lessons_updated_at ON lessons;
DROP TABLE IF EXISTS lessons;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE LESSON PLANS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create lesson plans and milestones tables
-- Version: 003
-- A tutor drafts a plan for a student; milestones split it into checkable
-- steps. Milestones start with an empty history (current_status_id NULL).

CREATE TABLE IF NOT EXISTS lesson_plans (
    id UUID PRIMARY KEY,
    tutor_id UUID NOT NULL,
    student_id UUID NOT NULL,
    title VARCHAR(200) NOT NULL,
    subject VARCHAR(50) NOT NULL,
    current_status_id UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_lesson_plans_tutor ON lesson_plans(tutor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_lesson_plans_student ON lesson_plans(student_id, created_at DESC);

DROP TRIGGER IF EXISTS update_lesson_plans_updated_at ON lesson_plans;
CREATE TRIGGER update_lesson_plans_updated_at
    BEFORE UPDATE ON lesson_plans
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();

DROP TRIGGER IF EXISTS cascade_lesson_plans_status_records ON lesson_plans;
CREATE TRIGGER cascade_lesson_plans_status_records
    BEFORE DELETE ON lesson_plans
    FOR EACH ROW
    EXECUTE FUNCTION cascade_delete_status_records('lesson_plan');

CREATE TABLE IF NOT EXISTS milestones (
    id UUID PRIMARY KEY,
    plan_id UUID NOT NULL REFERENCES lesson_plans(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    ordinal INTEGER NOT NULL,
    current_status_id UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(plan_id, ordinal),
    CONSTRAINT valid_ordinal CHECK (ordinal >= 1)
);

CREATE INDEX IF NOT EXISTS idx_milestones_plan ON milestones(plan_id, ordinal);

DROP TRIGGER IF EXISTS update_milestones_updated_at ON milestones;
CREATE TRIGGER update_milestones_updated_at
    BEFORE UPDATE ON milestones
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();

DROP TRIGGER IF EXISTS cascade_milestones_status_records ON milestones;
CREATE TRIGGER cascade_milestones_status_records
    BEFORE DELETE ON milestones
    FOR EACH ROW
    EXECUTE FUNCTION cascade_delete_status_records('milestone');
`

const migration003Down = `
DROP TRIGGER IF EXISTS cascade_milestones_status_records ON milestones;
DROP TRIGGER IF EXISTS update_milestones_updated_at ON milestones;
DROP TABLE IF EXISTS milestones;
DROP TRIGGER IF EXISTS cascade_lesson_plans_status_records ON lesson_plans;
DROP TRIGGER IF EXISTS update_lesson_plans_updated_at ON lesson_plans;
DROP TABLE IF EXISTS lesson_plans;
`
