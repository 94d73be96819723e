package postgres

// SQL-миграции встроены в код для упрощения деплоя.
// Порядок важен: версии применяются последовательно и один раз.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    last_name VARCHAR(255) NOT NULL DEFAULT '',
    policy_accepted BOOLEAN NOT NULL DEFAULT FALSE,
    policy_accepted_at TIMESTAMPTZ,
    policy_version VARCHAR(16) NOT NULL DEFAULT '1.0',
    status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'blocked', 'banned')),
    blocked_until TIMESTAMPTZ,
    ban_reason TEXT NOT NULL DEFAULT '',
    infractions_count INTEGER NOT NULL DEFAULT 0 CHECK (infractions_count >= 0),
    infractions_last_at TIMESTAMPTZ,
    balance_cached BIGINT NOT NULL DEFAULT 0,
    lifetime_earned BIGINT NOT NULL DEFAULT 0,
    lifetime_spent BIGINT NOT NULL DEFAULT 0,
    points_updated_at TIMESTAMPTZ,
    rank_period VARCHAR(7) NOT NULL,
    rank_earned BIGINT NOT NULL DEFAULT 0,
    rank_last_reset_at TIMESTAMPTZ,
    premium_redeems INTEGER NOT NULL DEFAULT 0,
    plan_type VARCHAR(16) NOT NULL DEFAULT 'FREE',
    plan_expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
CREATE INDEX IF NOT EXISTS idx_members_rank ON members(rank_period, rank_earned DESC, user_id)
    WHERE status <> 'banned';
CREATE INDEX IF NOT EXISTS idx_members_blocked ON members(blocked_until) WHERE status = 'blocked';
`

var migration002Ledger = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id BIGSERIAL PRIMARY KEY,
    entry_id VARCHAR(32) NOT NULL UNIQUE,
    user_id BIGINT NOT NULL REFERENCES members(user_id),
    entry_type VARCHAR(16) NOT NULL CHECK (entry_type IN ('EARN', 'BONUS', 'ADJUST', 'SPEND', 'PENALTY')),
    category VARCHAR(32) NOT NULL,
    reason_code VARCHAR(64) NOT NULL,
    points BIGINT NOT NULL CHECK (points > 0),
    signed_points BIGINT NOT NULL,
    month_earned_points BIGINT NOT NULL DEFAULT 0 CHECK (month_earned_points >= 0),
    meta JSONB NOT NULL DEFAULT '{}',
    period_key VARCHAR(7) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ledger_user_created ON ledger_entries(user_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_user_reason ON ledger_entries(user_id, reason_code);
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_first_redeem ON ledger_entries(user_id)
    WHERE reason_code = 'BONUS_FIRST_REDEEM';
`

var migration003Tiers = `
ALTER TABLE members
    ADD COLUMN IF NOT EXISTS elite_active BOOLEAN NOT NULL DEFAULT FALSE,
    ADD COLUMN IF NOT EXISTS elite_until TIMESTAMPTZ,
    ADD COLUMN IF NOT EXISTS elite_forced BOOLEAN NOT NULL DEFAULT FALSE,
    ADD COLUMN IF NOT EXISTS elite_forced_by BIGINT NOT NULL DEFAULT 0,
    ADD COLUMN IF NOT EXISTS elite_forced_note TEXT NOT NULL DEFAULT '',
    ADD COLUMN IF NOT EXISTS titan_active BOOLEAN NOT NULL DEFAULT FALSE,
    ADD COLUMN IF NOT EXISTS titan_until TIMESTAMPTZ,
    ADD COLUMN IF NOT EXISTS titan_forced BOOLEAN NOT NULL DEFAULT FALSE,
    ADD COLUMN IF NOT EXISTS titan_forced_by BIGINT NOT NULL DEFAULT 0,
    ADD COLUMN IF NOT EXISTS titan_forced_note TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_members_elite_until ON members(elite_until) WHERE elite_active;
CREATE INDEX IF NOT EXISTS idx_members_titan_until ON members(titan_until) WHERE titan_active;
`

var migration004Claims = `
CREATE TABLE IF NOT EXISTS task_claims (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES members(user_id),
    task_code VARCHAR(64) NOT NULL,
    points BIGINT NOT NULL CHECK (points > 0),
    credited BIGINT NOT NULL DEFAULT 0,
    multiplier VARCHAR(16) NOT NULL DEFAULT '',
    status VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
    day_key VARCHAR(10),
    evidence_ref TEXT NOT NULL DEFAULT '',
    caption TEXT NOT NULL DEFAULT '',
    weekly_code VARCHAR(16) NOT NULL DEFAULT '',
    admin_id BIGINT NOT NULL DEFAULT 0,
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    decided_at TIMESTAMPTZ,
    UNIQUE (user_id, task_code, day_key)
);
CREATE INDEX IF NOT EXISTS idx_task_claims_pending ON task_claims(created_at, id) WHERE status = 'pending';
`

var migration005Periods = `
CREATE TABLE IF NOT EXISTS month_snapshots (
    period_key VARCHAR(7) PRIMARY KEY,
    top JSONB NOT NULL DEFAULT '[]',
    participants BIGINT NOT NULL DEFAULT 0,
    total_earned BIGINT NOT NULL DEFAULT 0,
    max_earned BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS system_state (
    id VARCHAR(32) PRIMARY KEY,
    period_key VARCHAR(7) NOT NULL,
    last_run_at TIMESTAMPTZ NOT NULL
);
`

var migration006Winners = `
CREATE TABLE IF NOT EXISTS monthly_winners (
    period_key VARCHAR(7) NOT NULL,
    position SMALLINT NOT NULL CHECK (position BETWEEN 1 AND 3),
    user_id BIGINT NOT NULL REFERENCES members(user_id),
    display_name VARCHAR(255) NOT NULL DEFAULT '',
    period_points BIGINT NOT NULL DEFAULT 0,
    note TEXT NOT NULL DEFAULT '',
    admin_id BIGINT NOT NULL,
    assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (period_key, position)
);
`
