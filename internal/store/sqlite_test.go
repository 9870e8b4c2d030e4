package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailnotify/internal/model"
	"github.com/nhle/mailnotify/internal/store"
	"github.com/nhle/mailnotify/tests/testutil"
)

func msg(thread, date, sender, body string) model.DecodedMessage {
	return model.DecodedMessage{Thread: thread, Date: date, Sender: sender, Body: body}
}

func TestCommitNewInsertsUndelivered(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	inserted, err := s.CommitNew(ctx, map[uint32]model.DecodedMessage{
		101: msg("Hello", "2024-09-02 13:00", "a@example.com", "Hi there"),
		102: msg("Second", "2024-09-02 13:05", "b@example.com", "Body"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	records, err := s.FetchAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.False(t, rec.Delivered)
	}
}

func TestCommitNewIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	candidates := map[uint32]model.DecodedMessage{
		5: msg("Hello", "2024-09-02 13:00", "a@example.com", "Hi"),
	}

	inserted, err := s.CommitNew(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	inserted, err = s.CommitNew(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	records, err := s.FetchAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// Dedup compares the full tuple, not just the uid: the same uid with
// changed content is treated as new mail and stored as a second row.
func TestCommitNewTupleDedup(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CommitNew(ctx, map[uint32]model.DecodedMessage{
		5: msg("Hello", "2024-09-02 13:00", "a@example.com", "original"),
	})
	require.NoError(t, err)

	inserted, err := s.CommitNew(ctx, map[uint32]model.DecodedMessage{
		5: msg("Hello", "2024-09-02 13:00", "a@example.com", "edited"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	records, err := s.FetchAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, uint32(5), rec.UID)
	}
}

func TestMarkDelivered(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CommitNew(ctx, map[uint32]model.DecodedMessage{
		7: msg("Hello", "2024-09-02 13:00", "a@example.com", "Hi"),
		8: msg("World", "2024-09-02 13:01", "b@example.com", "Ho"),
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkDelivered(ctx, 7))

	undelivered, err := s.FetchAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, undelivered, 1)
	assert.Equal(t, uint32(8), undelivered[0].UID)

	// Delivered state is monotone: marking again changes nothing.
	require.NoError(t, s.MarkDelivered(ctx, 7))
	all, err := s.FetchAll(ctx, false)
	require.NoError(t, err)
	for _, rec := range all {
		if rec.UID == 7 {
			assert.True(t, rec.Delivered)
		}
	}
}

func TestMarkDeliveredAbsentUIDIsNoop(t *testing.T) {
	s := testutil.NewTestStore(t)

	require.NoError(t, s.MarkDelivered(context.Background(), 999))

	records, err := s.FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommitNewEmptyBatch(t *testing.T) {
	s := testutil.NewTestStore(t)

	inserted, err := s.CommitNew(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestReopenKeepsRecordsAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mails.sqlite3")
	ctx := context.Background()

	s := testutil.NewTestStoreAt(t, path)
	_, err := s.CommitNew(ctx, map[uint32]model.DecodedMessage{
		5: msg("Hello", "2024-09-02 13:00", "a@example.com", "Hi"),
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkDelivered(ctx, 5))
	require.NoError(t, s.Close())

	// A restart reopens the same file: migrations are already applied
	// and the delivered state survives.
	reopened := testutil.NewTestStoreAt(t, path)
	records, err := reopened.FetchAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Delivered)
}

func TestCloseNilSafe(t *testing.T) {
	var s *store.SQLiteStore
	assert.NoError(t, s.Close())
}
