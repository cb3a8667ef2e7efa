/**
 * @description
 * Bootstrap schema management. EnsureSchema creates the tables the service
 * needs if they do not exist yet, so a fresh database is usable without a
 * separate migration step.
 */

package store

import "context"

// EnsureSchema creates all tables and indexes used by the repository.
// Statements are idempotent; running them against an existing schema is a no-op.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS banks (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            country TEXT NOT NULL DEFAULT '',
            api_key_prefix TEXT NOT NULL UNIQUE,
            api_key_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS roles (
            id UUID PRIMARY KEY,
            bank_id UUID NOT NULL REFERENCES banks(id),
            name TEXT NOT NULL,
            level INT NOT NULL,
            max_transfer_amount BIGINT NOT NULL DEFAULT 0,
            can_approve_transfers BOOLEAN NOT NULL DEFAULT FALSE,
            can_create_users BOOLEAN NOT NULL DEFAULT FALSE,
            can_modify_settings BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (bank_id, name)
        );
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            bank_id UUID NOT NULL REFERENCES banks(id),
            username TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            role_name TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (bank_id, username)
        );
        CREATE TABLE IF NOT EXISTS wallets (
            id UUID PRIMARY KEY,
            bank_id UUID NOT NULL REFERENCES banks(id),
            name TEXT NOT NULL,
            currency TEXT NOT NULL DEFAULT 'USDC',
            balance BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS approval_rules (
            id UUID PRIMARY KEY,
            bank_id UUID NOT NULL REFERENCES banks(id),
            rule_name TEXT NOT NULL,
            min_amount BIGINT NOT NULL,
            max_amount BIGINT,
            required_role_level INT NOT NULL DEFAULT 0,
            required_approvals INT NOT NULL DEFAULT 0,
            auto_approve BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS transfers (
            id UUID PRIMARY KEY,
            bank_id UUID NOT NULL REFERENCES banks(id),
            source_wallet_id UUID NOT NULL REFERENCES wallets(id),
            amount BIGINT NOT NULL,
            currency TEXT NOT NULL,
            destination_address TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            initiated_by UUID NOT NULL REFERENCES users(id),
            status TEXT NOT NULL,
            approval_status TEXT NOT NULL,
            rule_name TEXT NOT NULL DEFAULT '',
            required_approvals INT NOT NULL DEFAULT 0,
            current_approvals INT NOT NULL DEFAULT 0,
            required_role_level INT NOT NULL DEFAULT 0,
            approval_deadline TIMESTAMPTZ,
            failure_reason TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS transfer_approvals (
            id UUID PRIMARY KEY,
            transfer_id UUID NOT NULL REFERENCES transfers(id),
            approver_user_id UUID NOT NULL REFERENCES users(id),
            comments TEXT NOT NULL DEFAULT '',
            approved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (transfer_id, approver_user_id)
        );
        CREATE INDEX IF NOT EXISTS idx_transfers_bank_status ON transfers (bank_id, status);
        CREATE INDEX IF NOT EXISTS idx_transfers_deadline ON transfers (approval_deadline)
            WHERE approval_deadline IS NOT NULL;
    `)
	return err
}
