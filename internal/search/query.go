package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
)

// maxSearchResults caps search() at 10,000 hits, per spec.md §4.2.
const maxSearchResults = 10000

// Search builds and runs the filter described by spec.md §4.2:
//   - user_query: public docs (user_id == "") OR docs owned by filter.UserID.
//     With no UserID given, restrict to public documents only.
//   - keywords_query: filter.Query, lowercased, matched against
//     [label_ngram, keywords_ngram] via n-gram phrase matching.
//   - category_query: term match on category.
//
// The three are ANDed; if only user_query applies, it is returned alone
// (functionally identical to AND of a single clause).
func (i *Index) Search(ctx context.Context, filter domain.SearchFilter) ([]domain.SearchDocument, error) {
	clauses := []bleve.Query{userQuery(filter.UserID)}

	if q := strings.TrimSpace(filter.Query); q != "" {
		clauses = append(clauses, keywordsQuery(q))
	}
	if filter.Category != "" {
		term := bleve.NewTermQuery(strings.ToLower(filter.Category))
		term.SetField("category")
		clauses = append(clauses, term)
	}

	var query bleve.Query
	if len(clauses) == 1 {
		query = clauses[0]
	} else {
		query = bleve.NewConjunctionQuery(clauses...)
	}

	req := bleve.NewSearchRequest(query)
	req.Fields = []string{"*"}
	req.Size = maxSearchResults

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperr.System("search", err)
	}

	docs := make([]domain.SearchDocument, 0, len(res.Hits))
	for _, hit := range res.Hits {
		d, err := fromHit(hit)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func userQuery(userID *uuid.UUID) bleve.Query {
	public := bleve.NewTermQuery(emptyUserMarker)
	public.SetField("user_id")
	if userID == nil {
		return public
	}
	owned := bleve.NewTermQuery(userID.String())
	owned.SetField("user_id")
	return bleve.NewDisjunctionQuery(public, owned)
}

// keywordsQuery matches q against both ngram fields. bleve's match query
// already runs the field's own analyzer (our ngramAnalyzerName), so passing
// the raw lowercased phrase reproduces the spec's "n-gram phrase matching".
func keywordsQuery(q string) bleve.Query {
	lower := strings.ToLower(q)

	label := bleve.NewMatchPhraseQuery(lower)
	label.SetField("label_ngram")

	keywords := bleve.NewMatchPhraseQuery(lower)
	keywords.SetField("keywords_ngram")

	return bleve.NewDisjunctionQuery(label, keywords)
}

func marshalMeta(m map[string]any) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", apperr.System("marshal search document meta", err)
	}
	return string(b), nil
}

func fromHit(hit *bsearch.DocumentMatch) (domain.SearchDocument, error) {
	fields := hit.Fields

	id, err := fieldToUint64(fields["id"])
	if err != nil {
		return domain.SearchDocument{}, apperr.System("parse search document id", err)
	}

	var userID *uuid.UUID
	if raw, _ := fields["user_id"].(string); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return domain.SearchDocument{}, apperr.System("parse search document user_id", err)
		}
		userID = &parsed
	}

	var meta map[string]any
	if raw, _ := fields["meta"].(string); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return domain.SearchDocument{}, apperr.System("unmarshal search document meta", err)
		}
	}

	var ts time.Time
	switch v := fields["timestamp"].(type) {
	case string:
		ts, _ = time.Parse(time.RFC3339Nano, v)
	case time.Time:
		ts = v
	}

	label, _ := fields["label"].(string)
	keywords, _ := fields["keywords"].(string)
	category, _ := fields["category"].(string)
	subCategory, _ := fields["sub_category"].(string)

	return domain.SearchDocument{
		ID:          id,
		UserID:      userID,
		Label:       label,
		Category:    category,
		SubCategory: subCategory,
		Keywords:    keywords,
		Meta:        meta,
		Timestamp:   ts,
	}, nil
}

func fieldToUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case float64:
		return uint64(n), nil
	case string:
		return strconv.ParseUint(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected id field type %T", v)
	}
}
