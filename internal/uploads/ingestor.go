package uploads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/pkg/queue"
)

// downloadTimeout bounds a single remote-file fetch.
const downloadTimeout = 5 * time.Minute

// IncomingFile is an inline file part carried in the callback itself.
type IncomingFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// RemoteFile describes a file the provider stored elsewhere for us to fetch.
type RemoteFile struct {
	FileName string `json:"fileName"`
	URL      string `json:"fileUrl"`
}

// Delivery is one normalized provider callback: correlation hints plus
// whatever combination of inline parts and remote descriptors it carried.
type Delivery struct {
	SessionID  string
	ResourceID string
	Inline     []IncomingFile
	Remote     []RemoteFile
}

// ArchiveQueue enqueues stored files for asynchronous S3 archiving.
type ArchiveQueue interface {
	EnqueueArchive(ctx context.Context, payload queue.ArchivePayload) error
}

// Ingestor turns provider callbacks into committed upload batches. Local
// persistence completes before Ingest returns, so an acknowledged webhook
// guarantees file availability to any immediately-following poll.
type Ingestor struct {
	store   Store
	files   *FileStore
	http    *resty.Client
	audit   *Repository
	archive ArchiveQueue
	logger  *zap.Logger
}

// NewIngestor creates an ingestor writing into files and committing to store.
func NewIngestor(store Store, files *FileStore, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:  store,
		files:  files,
		http:   resty.New().SetTimeout(downloadTimeout),
		logger: logger,
	}
}

// SetAuditRepository enables best-effort audit rows for committed batches.
func (i *Ingestor) SetAuditRepository(r *Repository) { i.audit = r }

// SetArchiveQueue enables best-effort S3 archiving of stored files.
func (i *Ingestor) SetArchiveQueue(q ArchiveQueue) { i.archive = q }

// Ingest persists every retrievable file of the delivery and commits a
// batch keyed by whichever identifiers were found. A delivery that yields
// no files is metadata-only: nothing is written and (nil, nil) is returned.
// A single failed file never aborts the rest of the batch.
func (i *Ingestor) Ingest(ctx context.Context, d Delivery) (*Batch, error) {
	var files []FileRecord

	for _, part := range d.Inline {
		rec, err := i.saveInline(part)
		if err != nil {
			i.logger.Warn("inline file skipped", zap.String("name", part.Name), zap.Error(err))
			continue
		}
		files = append(files, rec)
	}

	for _, remote := range d.Remote {
		if remote.URL == "" {
			continue
		}
		rec, err := i.download(ctx, remote)
		if err != nil {
			i.logger.Warn("remote file skipped", zap.String("url", remote.URL), zap.Error(err))
			continue
		}
		files = append(files, rec)
	}

	if len(files) == 0 {
		i.logger.Info("metadata-only delivery, no batch written",
			zap.String("sid", d.SessionID), zap.String("resource_id", d.ResourceID))
		return nil, nil
	}

	batch := Batch{
		SessionID:  d.SessionID,
		ResourceID: d.ResourceID,
		Files:      files,
		ReceivedAt: time.Now().UTC(),
	}
	if err := i.store.Put(ctx, batch); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	if i.audit != nil {
		if err := i.audit.RecordBatch(ctx, batch); err != nil {
			i.logger.Error("audit record failed", zap.Error(err), zap.String("sid", d.SessionID))
		}
	}
	if i.archive != nil {
		for _, f := range files {
			err := i.archive.EnqueueArchive(ctx, queue.ArchivePayload{
				SessionID:  d.SessionID,
				StoredName: f.StoredName,
				Location:   f.Location,
			})
			if err != nil {
				i.logger.Error("archive enqueue failed", zap.Error(err), zap.String("file", f.StoredName))
			}
		}
	}

	i.logger.Info("upload batch committed",
		zap.String("sid", d.SessionID),
		zap.String("resource_id", d.ResourceID),
		zap.Int("files", len(files)))
	return &batch, nil
}

func (i *Ingestor) saveInline(part IncomingFile) (FileRecord, error) {
	src, err := part.Open()
	if err != nil {
		return FileRecord{}, fmt.Errorf("open part: %w", err)
	}
	defer src.Close()

	storedName := i.files.StoredName(part.Name)
	location, size, err := i.files.Save(storedName, src)
	if err != nil {
		return FileRecord{}, err
	}
	return FileRecord{
		OriginalName: part.Name,
		StoredName:   storedName,
		Location:     location,
		PublicURL:    i.files.PublicURL(storedName),
		Size:         size,
	}, nil
}

func (i *Ingestor) download(ctx context.Context, remote RemoteFile) (FileRecord, error) {
	resp, err := i.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(remote.URL)
	if err != nil {
		return FileRecord{}, fmt.Errorf("fetch %s: %w", remote.URL, err)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		return FileRecord{}, fmt.Errorf("fetch %s: status %d", remote.URL, resp.StatusCode())
	}

	name := remote.FileName
	if name == "" {
		name = "recording"
	}
	storedName := i.files.StoredName(name)
	location, size, err := i.files.Save(storedName, body)
	if err != nil {
		return FileRecord{}, err
	}
	return FileRecord{
		OriginalName: name,
		StoredName:   storedName,
		Location:     location,
		PublicURL:    i.files.PublicURL(storedName),
		SourceURL:    remote.URL,
		Size:         size,
	}, nil
}
