package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/locking"
	"github.com/secutils/core/internal/pkg/apperr"
)

// Index is the C2 Search Index: a bleve-backed inverted index with
// upsert-by-id semantics and atomic commit+reload (spec.md §4.2).
type Index struct {
	idx        bleve.Index
	writerLock locking.Lock
}

// Open opens (or creates) a bleve index at path. An empty path opens an
// in-memory index, used by tests.
func Open(path string) (*Index, error) {
	im, err := buildMapping()
	if err != nil {
		return nil, apperr.System("build search index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, apperr.System("open search index", err)
	}
	return &Index{idx: idx, writerLock: locking.NewInMemoryLock(&sync.Mutex{})}, nil
}

// Close releases the underlying bleve index.
func (i *Index) Close() error {
	return i.idx.Close()
}

type indexDoc struct {
	ID            uint64    `json:"id"`
	UserID        string    `json:"user_id"`
	Label         string    `json:"label"`
	LabelNgram    string    `json:"label_ngram"`
	Keywords      string    `json:"keywords"`
	KeywordsNgram string    `json:"keywords_ngram"`
	Category      string    `json:"category"`
	SubCategory   string    `json:"sub_category"`
	Meta          string    `json:"meta"`
	Timestamp     time.Time `json:"timestamp"`
}

// emptyUserMarker is the sentinel stored for public (no owning user)
// documents, matching the spec's "user_id == EMPTY" comparison.
const emptyUserMarker = ""

func toIndexDoc(d domain.SearchDocument) (indexDoc, error) {
	var metaJSON string
	if len(d.Meta) > 0 {
		b, err := marshalMeta(d.Meta)
		if err != nil {
			return indexDoc{}, err
		}
		metaJSON = b
	}
	userID := emptyUserMarker
	if d.UserID != nil {
		userID = d.UserID.String()
	}
	return indexDoc{
		ID:            d.ID,
		UserID:        userID,
		Label:         d.Label,
		LabelNgram:    d.Label,
		Keywords:      d.Keywords,
		KeywordsNgram: d.Keywords,
		Category:      d.Category,
		SubCategory:   d.SubCategory,
		Meta:          metaJSON,
		Timestamp:     d.Timestamp,
	}, nil
}

func docID(id uint64) string { return fmt.Sprintf("%020d", id) }

// Upsert adds or replaces a document by id. Per spec.md §4.2, the four
// steps (delete-if-exists, add, commit, reload) must appear atomic to
// readers — bleve's Index() already commits+refreshes its reader
// synchronously, so the writer lock is what actually serializes concurrent
// upserts against the same id across goroutines.
func (i *Index) Upsert(ctx context.Context, d domain.SearchDocument) error {
	if err := locking.AcquireWithRetry(ctx, i.writerLock); err != nil {
		return apperr.System("acquire search index writer lock", err)
	}
	defer i.writerLock.Release(ctx)

	doc, err := toIndexDoc(d)
	if err != nil {
		return err
	}
	if err := i.idx.Index(docID(d.ID), doc); err != nil {
		return apperr.System("index search document", err)
	}
	return nil
}

// Remove deletes a document by id (delete-by-term + commit + reload).
func (i *Index) Remove(ctx context.Context, id uint64) error {
	if err := locking.AcquireWithRetry(ctx, i.writerLock); err != nil {
		return apperr.System("acquire search index writer lock", err)
	}
	defer i.writerLock.Release(ctx)

	if err := i.idx.Delete(docID(id)); err != nil {
		return apperr.System("delete search document", err)
	}
	return nil
}

// Get returns the document with the given id, or nil if absent. Fails with
// a System error (TooManyForId, treated as corruption) if more than one
// document matches.
func (i *Index) Get(ctx context.Context, id uint64) (*domain.SearchDocument, error) {
	q := bleve.NewDocIDQuery([]string{docID(id)})
	req := bleve.NewSearchRequest(q)
	req.Fields = []string{"*"}
	req.Size = 2

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperr.System("get search document", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	if len(res.Hits) > 1 {
		return nil, apperr.System("TooManyForId: multiple search documents share id", fmt.Errorf("id=%d", id))
	}
	d, err := fromHit(res.Hits[0])
	if err != nil {
		return nil, err
	}
	return &d, nil
}
