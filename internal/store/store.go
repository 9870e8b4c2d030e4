package store

import (
	"context"

	"github.com/nhle/mailnotify/internal/model"
)

// Store defines the persistence interface for ingested mail records.
//
// Methods return errors rather than swallowing them; the poll loop
// decides whether a failure is logged and skipped or abandons the
// cycle, keeping the failure policy in one visible place.
type Store interface {
	// FetchAll returns all records, or only undelivered ones when
	// unreadOnly is set. No ordering is guaranteed.
	FetchAll(ctx context.Context, unreadOnly bool) ([]model.MailRecord, error)

	// CommitNew inserts every candidate whose full tuple
	// (uid, thread, date, sender, body) is absent from the store,
	// with delivered=false, in a single transaction. Returns the
	// number of rows inserted.
	CommitNew(ctx context.Context, candidates map[uint32]model.DecodedMessage) (int, error)

	// MarkDelivered flips delivered to true for the given uid.
	// A uid with no matching rows is a no-op.
	MarkDelivered(ctx context.Context, uid uint32) error

	// Close releases the backing database. Safe to call on a store
	// that never finished opening.
	Close() error
}
