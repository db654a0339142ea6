// Package search implements C2: an inverted index with n-gram text
// analysis, per-user visibility, upsert-by-id semantics, and atomic commit
// coupled with reader reload (spec.md §4.2). No repo in the pack wires a
// full-text search library; bleve is the closest idiomatic match to the
// schema's fast/stored-field and ngram-tokenizer shape (see DESIGN.md
// "Out-of-pack additions").
package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	ngramAnalyzerName = "secutils_ngram_prefix"
	rawAnalyzerName   = "secutils_raw_lower"

	minGram = 2
	maxGram = 10
)

// registerAnalyzers wires the two custom analyzers the schema needs:
//   - ngramAnalyzerName: unicode tokenizer -> lowercase -> edge ngram(2..10)
//     taken from the start of each token, for prefix matching (spec.md §4.2
//     label_ngram/keywords_ngram fields).
//   - rawAnalyzerName: single (whole-value) tokenizer -> lowercase, for the
//     raw-tokenized fields (user_id, label, keywords, category,
//     sub_category) that must compare case-insensitively but never split.
func registerAnalyzers(reg *registry.Cache) error {
	if _, err := reg.DefineTokenFilter("secutils_ngram_min2max10", map[string]interface{}{
		"type": edgengram.Name,
		"back": false,
		"min":  float64(minGram),
		"max":  float64(maxGram),
	}); err != nil {
		return err
	}
	if _, err := reg.DefineAnalyzer(ngramAnalyzerName, map[string]interface{}{
		"type":          "custom",
		"tokenizer":     unicode.Name,
		"token_filters": []interface{}{lowercase.Name, "secutils_ngram_min2max10"},
	}); err != nil {
		return err
	}
	if _, err := reg.DefineAnalyzer(rawAnalyzerName, map[string]interface{}{
		"type":          "custom",
		"tokenizer":     single.Name,
		"token_filters": []interface{}{lowercase.Name},
	}); err != nil {
		return err
	}
	return nil
}

// buildMapping constructs the document mapping for spec.md §4.2's schema.
func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := registerAnalyzers(im.CustomAnalysis.AnalyzerCache()); err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentMapping()

	id := bleve.NewNumericFieldMapping()
	id.Store = true
	id.Index = true
	doc.AddFieldMappingsAt("id", id)

	userID := bleve.NewTextFieldMapping()
	userID.Analyzer = rawAnalyzerName
	userID.Store = true
	doc.AddFieldMappingsAt("user_id", userID)

	label := bleve.NewTextFieldMapping()
	label.Analyzer = rawAnalyzerName
	label.Store = true
	doc.AddFieldMappingsAt("label", label)

	labelNgram := bleve.NewTextFieldMapping()
	labelNgram.Analyzer = ngramAnalyzerName
	labelNgram.Store = true
	labelNgram.IncludeTermVectors = true
	doc.AddFieldMappingsAt("label_ngram", labelNgram)

	keywords := bleve.NewTextFieldMapping()
	keywords.Analyzer = rawAnalyzerName
	keywords.Store = true
	doc.AddFieldMappingsAt("keywords", keywords)

	keywordsNgram := bleve.NewTextFieldMapping()
	keywordsNgram.Analyzer = ngramAnalyzerName
	keywordsNgram.Store = true
	keywordsNgram.IncludeTermVectors = true
	doc.AddFieldMappingsAt("keywords_ngram", keywordsNgram)

	category := bleve.NewTextFieldMapping()
	category.Analyzer = rawAnalyzerName
	category.Store = true
	doc.AddFieldMappingsAt("category", category)

	subCategory := bleve.NewTextFieldMapping()
	subCategory.Analyzer = rawAnalyzerName
	subCategory.Store = true
	doc.AddFieldMappingsAt("sub_category", subCategory)

	meta := bleve.NewTextFieldMapping()
	meta.Store = true
	meta.Index = false
	doc.AddFieldMappingsAt("meta", meta)

	timestamp := bleve.NewDateTimeFieldMapping()
	timestamp.Store = true
	doc.AddFieldMappingsAt("timestamp", timestamp)

	im.AddDocumentMapping("_default", doc)
	im.DefaultMapping = doc
	return im, nil
}
