package uploads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch(sid, rid string, names ...string) Batch {
	files := make([]FileRecord, 0, len(names))
	for _, n := range names {
		files = append(files, FileRecord{
			OriginalName: n,
			StoredName:   "stored_" + n,
			Location:     "/tmp/" + n,
			PublicURL:    "/files/stored_" + n,
			Size:         42,
		})
	}
	return Batch{SessionID: sid, ResourceID: rid, Files: files, ReceivedAt: time.Now().UTC()}
}

func TestMemoryStore_NotFoundBeforeDelivery(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()

	_, err := s.GetBySessionID(context.Background(), "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByResourceID(context.Background(), "rid-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_PutAndGetBothIndexes(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testBatch("sid-1", "rid-1", "a.mp4")))

	bySid, err := s.GetBySessionID(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "rid-1", bySid.ResourceID)
	assert.Len(t, bySid.Files, 1)
	assert.Equal(t, "a.mp4", bySid.Files[0].OriginalName)

	byRid, err := s.GetByResourceID(ctx, "rid-1")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", byRid.SessionID)
}

func TestMemoryStore_LookupIsIdempotent(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testBatch("sid-1", "rid-1", "a.mp4")))

	first, err := s.GetBySessionID(ctx, "sid-1")
	require.NoError(t, err)
	second, err := s.GetBySessionID(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMemoryStore_LastWriteWins(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testBatch("sid-1", "rid-1", "a.mp4")))
	require.NoError(t, s.Put(ctx, testBatch("sid-1", "rid-1", "b.mp4", "c.m3u8")))

	got, err := s.GetBySessionID(ctx, "sid-1")
	require.NoError(t, err)
	assert.Len(t, got.Files, 2)
	assert.Equal(t, "b.mp4", got.Files[0].OriginalName)
}

func TestMemoryStore_PartialIdentifiers(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	// Only a sid: the resource index must stay empty.
	require.NoError(t, s.Put(ctx, testBatch("sid-only", "", "a.mp4")))
	_, err := s.GetBySessionID(ctx, "sid-only")
	assert.NoError(t, err)
	_, err = s.GetByResourceID(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	// Only a resource ID.
	require.NoError(t, s.Put(ctx, testBatch("", "rid-only", "b.mp4")))
	_, err = s.GetByResourceID(ctx, "rid-only")
	assert.NoError(t, err)
}

func TestMemoryStore_RemoveClearsBothIndexes(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testBatch("sid-1", "rid-1", "a.mp4")))
	require.NoError(t, s.Remove(ctx, "sid-1"))

	_, err := s.GetBySessionID(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByResourceID(ctx, "rid-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RemoveUnknownIsNoop(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	assert.NoError(t, s.Remove(context.Background(), "never-seen"))
}

func TestMemoryStore_TTLEviction(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testBatch("sid-1", "rid-1", "a.mp4")))

	_, err := s.GetBySessionID(ctx, "sid-1")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = s.GetBySessionID(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByResourceID(ctx, "rid-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ZeroFileBatchIsFound(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	// A committed batch with no files is distinct from no delivery at all.
	require.NoError(t, s.Put(ctx, Batch{SessionID: "sid-1", ReceivedAt: time.Now()}))

	got, err := s.GetBySessionID(ctx, "sid-1")
	require.NoError(t, err)
	assert.Empty(t, got.Files)
}
