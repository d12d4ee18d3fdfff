package queue

import (
	"github.com/ternarybob/crawlkit/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStore persists finished Documents, generalized from the teacher's
// `document_persister.go` (SQLite-backed `DocumentStorage`) onto
// `timshannon/badgerhold/v4` against the same Badger instance the job queue
// uses. Documents are keyed by ID only; Save does not look up an existing
// document by source URL.
type DocumentStore struct {
	store *badgerhold.Store
}

func NewDocumentStore(db *BadgerDB) *DocumentStore {
	return &DocumentStore{store: db.Store()}
}

// Save inserts or updates a document, keyed by its ID. scrape.Execute gives
// every fetch a new ID, so a re-fetched URL is stored as a separate document.
func (s *DocumentStore) Save(doc *models.Document) error {
	return s.store.Upsert(doc.ID, doc)
}

func (s *DocumentStore) Get(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.store.Get(id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetBySourceURL returns a saved document whose SourceURL matches. The
// matches are not sorted, so when several documents share the URL, which
// one is returned is not defined.
func (s *DocumentStore) GetBySourceURL(sourceURL string) (*models.Document, error) {
	var docs []models.Document
	if err := s.store.Find(&docs, badgerhold.Where("SourceURL").Eq(sourceURL)); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, badgerhold.ErrNotFound
	}
	return &docs[0], nil
}

// GetMany returns every document whose ID is in ids, skipping misses.
func (s *DocumentStore) GetMany(ids []string) []*models.Document {
	out := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(id)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out
}
