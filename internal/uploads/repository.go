package uploads

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists a durable audit trail of committed upload batches.
// It is diagnostics-only: the correlation path never reads from it, and
// callers treat write failures as non-fatal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an uploads audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordBatch inserts an audit row for the batch and one row per file.
func (r *Repository) RecordBatch(ctx context.Context, batch Batch) error {
	batchID := uuid.New()
	const insertBatch = `INSERT INTO upload_batches (id, sid, resource_id, received_at, file_count)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, insertBatch, batchID, batch.SessionID, batch.ResourceID, batch.ReceivedAt, len(batch.Files)); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	const insertFile = `INSERT INTO upload_files (id, batch_id, original_name, stored_name, location, public_url, source_url, size_bytes)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)`
	for _, f := range batch.Files {
		if _, err := r.pool.Exec(ctx, insertFile, batchID, f.OriginalName, f.StoredName, f.Location, f.PublicURL, f.SourceURL, f.Size); err != nil {
			return fmt.Errorf("insert file %s: %w", f.StoredName, err)
		}
	}
	return nil
}

// SetArchiveURL records the S3 object URL once the archive worker has
// copied a stored file off local disk.
func (r *Repository) SetArchiveURL(ctx context.Context, storedName, archiveURL string) error {
	const q = `UPDATE upload_files SET archive_url = $1, archived_at = NOW() WHERE stored_name = $2`
	_, err := r.pool.Exec(ctx, q, archiveURL, storedName)
	return err
}

// ListBySessionID returns the audit rows for a session, newest first.
func (r *Repository) ListBySessionID(ctx context.Context, sid string) ([]Batch, error) {
	const q = `SELECT id, sid, resource_id, received_at FROM upload_batches WHERE sid = $1 ORDER BY received_at DESC`
	rows, err := r.pool.Query(ctx, q, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []Batch
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var b Batch
		if err := rows.Scan(&id, &b.SessionID, &b.ResourceID, &b.ReceivedAt); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		files, err := r.listFiles(ctx, id)
		if err != nil {
			return nil, err
		}
		batches[i].Files = files
	}
	return batches, nil
}

func (r *Repository) listFiles(ctx context.Context, batchID uuid.UUID) ([]FileRecord, error) {
	const q = `SELECT original_name, stored_name, location, public_url, COALESCE(source_url,''), size_bytes
		FROM upload_files WHERE batch_id = $1 ORDER BY stored_name`
	rows, err := r.pool.Query(ctx, q, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.OriginalName, &f.StoredName, &f.Location, &f.PublicURL, &f.SourceURL, &f.Size); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
