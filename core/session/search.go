package session

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/adalundhe/scriptorium/core/errors"
)

// SearchOrder selects how search hits are ordered.
type SearchOrder string

const (
	// OrderRecency sorts by last activity, newest first. Default.
	OrderRecency SearchOrder = "recency"

	// OrderRelevance sorts by keyword match score, best first.
	OrderRelevance SearchOrder = "relevance"
)

// SearchQuery describes a keyword search over past sessions. All filter
// fields are optional; an empty query matches everything.
type SearchQuery struct {
	Text      string
	Category  string
	AgentType string
	Order     SearchOrder
	Limit     int
}

// Hit is one search result, resolved to a full Summary by the caller.
type Hit struct {
	SessionID string
	Score     float64
}

const defaultSearchLimit = 20

// sessionDocument is the indexed projection of a session. Content holds
// the whole transcript so keyword search reaches both sides of every
// turn; category and agent_type are exact-match filters.
type sessionDocument struct {
	Content      string `json:"content"`
	Category     string `json:"category"`
	AgentType    string `json:"agent_type"`
	LastActivity string `json:"last_activity"`
}

// SearchIndex maintains a bleve keyword index with one document per
// session. Reindexing is idempotent: indexing an id that already exists
// replaces the prior document.
type SearchIndex struct {
	index  bleve.Index
	logger *slog.Logger
}

func buildSessionIndexMapping() mapping.IndexMapping {
	contentField := bleve.NewTextFieldMapping()

	// Exact-match fields: the keyword analyzer indexes the raw value as a
	// single term, so "powershell-modules" never tokenizes apart.
	categoryField := bleve.NewTextFieldMapping()
	categoryField.Analyzer = keyword.Name
	agentTypeField := bleve.NewTextFieldMapping()
	agentTypeField.Analyzer = keyword.Name

	lastActivityField := bleve.NewTextFieldMapping()
	lastActivityField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("category", categoryField)
	docMapping.AddFieldMappingsAt("agent_type", agentTypeField)
	docMapping.AddFieldMappingsAt("last_activity", lastActivityField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// NewSearchIndex opens the session search index at path, creating it if
// it does not exist.
func NewSearchIndex(path string, logger *slog.Logger) (*SearchIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index, err := bleve.Open(path)
	if err != nil {
		if !os.IsNotExist(err) && err != bleve.ErrorIndexPathDoesNotExist {
			return nil, errors.New(errors.ClassStorage, "open session index", err)
		}
		index, err = bleve.New(path, buildSessionIndexMapping())
		if err != nil {
			return nil, errors.New(errors.ClassStorage, "create session index", err)
		}
	}

	return &SearchIndex{index: index, logger: logger}, nil
}

// NewMemorySearchIndex creates an in-memory index for tests.
func NewMemorySearchIndex(logger *slog.Logger) (*SearchIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	index, err := bleve.NewMemOnly(buildSessionIndexMapping())
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "create in-memory session index", err)
	}
	return &SearchIndex{index: index, logger: logger}, nil
}

// Index writes (or replaces) the document for a session.
func (s *SearchIndex) Index(sess *Session) error {
	var transcript strings.Builder
	for i, msg := range sess.Messages {
		if i > 0 {
			transcript.WriteString("\n")
		}
		transcript.WriteString(msg.Content)
	}

	doc := sessionDocument{
		Content:      transcript.String(),
		Category:     sess.Category,
		AgentType:    sess.AgentType,
		LastActivity: formatTime(sess.LastActivityAt),
	}

	if err := s.index.Index(sess.ID, doc); err != nil {
		return errors.New(errors.ClassStorage, "index session", err)
	}
	return nil
}

// Remove deletes a session's document. Unknown ids are a no-op.
func (s *SearchIndex) Remove(id string) error {
	if err := s.index.Delete(id); err != nil {
		return errors.New(errors.ClassStorage, "remove session from index", err)
	}
	return nil
}

// Search runs a keyword query with optional exact-match filters.
func (s *SearchIndex) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var clauses []query.Query
	if q.Text != "" {
		match := bleve.NewMatchQuery(q.Text)
		match.SetField("content")
		clauses = append(clauses, match)
	}
	if q.Category != "" {
		term := bleve.NewTermQuery(q.Category)
		term.SetField("category")
		clauses = append(clauses, term)
	}
	if q.AgentType != "" {
		term := bleve.NewTermQuery(q.AgentType)
		term.SetField("agent_type")
		clauses = append(clauses, term)
	}

	var searchQuery query.Query
	switch len(clauses) {
	case 0:
		searchQuery = bleve.NewMatchAllQuery()
	case 1:
		searchQuery = clauses[0]
	default:
		searchQuery = bleve.NewConjunctionQuery(clauses...)
	}

	request := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	switch q.Order {
	case OrderRelevance:
		request.SortBy([]string{"-_score"})
	default:
		// RFC 3339 timestamps sort lexicographically, so a reverse string
		// sort on last_activity is newest-first.
		request.SortBy([]string{"-last_activity"})
	}

	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "search sessions", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, Hit{SessionID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	return s.index.Close()
}
