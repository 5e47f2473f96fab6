// Package status tracks translation jobs through an append-only record
// store and drives the per-job state machine that writes to it.
package status

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// Query narrows a QueryLatest scan. A JobID restricts the scan to records
// embedding that job id; RequireState additionally demands an exact state.
type Query struct {
	JobID        string
	RequireState models.State
}

// Store is the append-only status store contract. Records for one filename
// are retrievable newest-first; existing records are never mutated.
//
// QueryLatest returns nil both when nothing matches and when the underlying
// store fails; polling must degrade to "not found", never surface a store
// error. Implementations log failures instead.
type Store interface {
	Append(ctx context.Context, filename string, status models.Status) error
	QueryLatest(ctx context.Context, filename string, q Query) *models.StatusRecord
}

// queryWindow bounds how far back a scan looks. A single job writes fewer
// than a dozen records, so this accommodates many concurrent jobs per
// filename.
const queryWindow = 100

// FirestoreStore persists status records as documents in one collection,
// keyed by auto id and scanned newest-first on createdAt.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore wraps an existing Firestore client.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

// Append writes one status record. The record's CreatedAt is assigned here
// so ordering is decided by the writer, not the caller.
func (s *FirestoreStore) Append(ctx context.Context, filename string, status models.Status) error {
	rec := models.StatusRecord{
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
		Status:    status,
	}
	if _, _, err := s.client.Collection(s.collection).Add(ctx, rec); err != nil {
		return err
	}
	return nil
}

// QueryLatest scans records for filename newest-first and returns the first
// match, or nil on no match or store failure.
func (s *FirestoreStore) QueryLatest(ctx context.Context, filename string, q Query) *models.StatusRecord {
	it := s.client.Collection(s.collection).
		Where("filename", "==", filename).
		OrderBy("createdAt", firestore.Desc).
		Limit(queryWindow).
		Documents(ctx)
	defer it.Stop()

	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			slog.Error("Status store query failed.", "filename", filename, "error", err)
			return nil
		}
		var rec models.StatusRecord
		if err := doc.DataTo(&rec); err != nil {
			slog.Error("Skipping undecodable status record.", "filename", filename, "error", err)
			continue
		}
		if matches(&rec, q) {
			return &rec
		}
	}
}

// matches applies the Query filter to one record.
func matches(rec *models.StatusRecord, q Query) bool {
	if q.JobID != "" && rec.Status.JobID != q.JobID {
		return false
	}
	if q.RequireState != "" && rec.Status.State != q.RequireState {
		return false
	}
	return true
}

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]models.StatusRecord
	seq     int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]models.StatusRecord)}
}

func (s *MemoryStore) Append(_ context.Context, filename string, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Monotonic timestamps: appends within one clock tick still order by
	// insertion.
	s.seq++
	rec := models.StatusRecord{
		Filename:  filename,
		CreatedAt: time.Now().UTC().Add(time.Duration(s.seq) * time.Nanosecond),
		Status:    status,
	}
	s.records[filename] = append(s.records[filename], rec)
	return nil
}

func (s *MemoryStore) QueryLatest(_ context.Context, filename string, q Query) *models.StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := append([]models.StatusRecord(nil), s.records[filename]...)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	for i := range recs {
		if matches(&recs[i], q) {
			return &recs[i]
		}
	}
	return nil
}

// Records returns a copy of everything appended for filename, oldest first.
func (s *MemoryStore) Records(filename string) []models.StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StatusRecord(nil), s.records[filename]...)
}
