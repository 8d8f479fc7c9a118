package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/internal/uploads"
	"github.com/clearcast/recording-backend/pkg/queue"
	"github.com/clearcast/recording-backend/pkg/storage"
)

// ArchiveProcessor drains archive jobs: it streams locally stored webhook
// files to S3 and records the object URL on the audit row. The correlation
// store is never touched; archiving is long-term retention only.
type ArchiveProcessor struct {
	s3     *storage.S3
	queue  *queue.Queue
	audit  *uploads.Repository // optional
	logger *zap.Logger
}

// NewArchiveProcessor creates an archive worker. audit may be nil.
func NewArchiveProcessor(s3 *storage.S3, q *queue.Queue, audit *uploads.Repository, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{s3: s3, queue: q, audit: audit, logger: logger}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	f, err := os.Open(payload.Location)
	if err != nil {
		return fmt.Errorf("open %s: %w", payload.Location, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", payload.Location, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(payload.StoredName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.ArchiveKey(payload.SessionID, payload.StoredName)
	url, err := p.s3.Upload(ctx, p.s3.ArchiveBucket(), key, contentType, f, info.Size())
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if p.audit != nil {
		if err := p.audit.SetArchiveURL(ctx, payload.StoredName, url); err != nil {
			p.logger.Error("record archive url failed", zap.Error(err), zap.String("stored_name", payload.StoredName))
		}
	}

	p.logger.Info("file archived", zap.String("stored_name", payload.StoredName), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
