package database

import (
	"fmt"
	"log/slog"
)

// RunMigrations creates the document table every collection lives in.
func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createDocumentsTable,
		createDocumentsSeqIndex,
		createPendingFeesPerformerIndex,
		createPendingFeesGigIndex,
		createPendingFeesStatusIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
    collection VARCHAR(100) NOT NULL,
    id VARCHAR(255) NOT NULL,
    seq BIGSERIAL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);`

const createDocumentsSeqIndex = `
CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents(collection, seq);`

const createPendingFeesPerformerIndex = `
CREATE INDEX IF NOT EXISTS idx_pending_fees_performer
    ON documents ((data->>'performerId')) WHERE collection = 'pendingFees';`

const createPendingFeesGigIndex = `
CREATE INDEX IF NOT EXISTS idx_pending_fees_gig
    ON documents ((data->>'gigId')) WHERE collection = 'pendingFees';`

const createPendingFeesStatusIndex = `
CREATE INDEX IF NOT EXISTS idx_pending_fees_status
    ON documents ((data->>'status')) WHERE collection = 'pendingFees';`
