// Package qa is the question answering service: it indexes requested
// documents and answers questions against them.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/chunker"
	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/fetch"
	"github.com/ziadkadry99/doc-qa/internal/history"
	"github.com/ziadkadry99/doc-qa/internal/llm"
	"github.com/ziadkadry99/doc-qa/internal/retrieval"
)

var (
	// ErrInvalidRequest is returned for requests that fail validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDocumentNotFound is returned when removing an unknown document.
	ErrDocumentNotFound = errors.New("document not found")
)

// Fetcher downloads a document and extracts its pages.
type Fetcher interface {
	FetchAndExtract(ctx context.Context, url string) ([]chunker.Page, *fetch.DocumentInfo, error)
}

// Options configures a Service.
type Options struct {
	// QuestionConcurrency bounds how many questions of one request are
	// answered at once.
	QuestionConcurrency int
	// ExtractIntent enables the structured-intent LLM call per question.
	ExtractIntent bool
	Version       string
	Logger        *slog.Logger
}

// Service wires retrieval, answering and the registries together.
type Service struct {
	fetcher   Fetcher
	retriever *retrieval.Orchestrator
	answerer  *answer.Answerer
	healthLLM llm.Generator
	docs      *documents.Store
	history   *history.Store
	opts      Options
	logger    *slog.Logger
	ingests   singleflight.Group
}

// New creates a Service. healthLLM is used by Health to check the LLM and may
// be nil. history may be nil to disable query logging.
func New(
	fetcher Fetcher,
	retriever *retrieval.Orchestrator,
	answerer *answer.Answerer,
	healthLLM llm.Generator,
	docs *documents.Store,
	hist *history.Store,
	opts Options,
) *Service {
	if opts.QuestionConcurrency <= 0 {
		opts.QuestionConcurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		fetcher:   fetcher,
		retriever: retriever,
		answerer:  answerer,
		healthLLM: healthLLM,
		docs:      docs,
		history:   hist,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// ProcessDocumentRequest indexes the requested document if needed and
// answers every question against it. Answers keep question order.
func (s *Service) ProcessDocumentRequest(ctx context.Context, req DocumentRequest) (*DocumentResponse, error) {
	start := time.Now()

	url := strings.TrimSpace(req.Documents)
	if url == "" {
		return nil, fmt.Errorf("%w: documents url is required", ErrInvalidRequest)
	}
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", ErrInvalidRequest)
	}
	for i, q := range req.Questions {
		if strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("%w: question %d is empty", ErrInvalidRequest, i+1)
		}
	}

	s.logger.Info("processing document request", "questions", len(req.Questions))

	doc, err := s.IngestDocument(ctx, url, false)
	if err != nil {
		return nil, err
	}

	responses := make([]*answer.QueryResponse, len(req.Questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.QuestionConcurrency)
	for i, q := range req.Questions {
		g.Go(func() error {
			responses[i] = s.answerQuestion(gctx, q, doc.ID)
			return nil
		})
	}
	_ = g.Wait()

	answers := make([]string, len(responses))
	for i, r := range responses {
		answers[i] = r.Result
	}

	took := time.Since(start)
	s.logger.Info("document request completed",
		"document_id", doc.ID,
		"questions", len(req.Questions),
		"took", took,
	)
	return &DocumentResponse{
		Answers:           answers,
		DetailedResponses: responses,
		DocumentID:        doc.ID,
		ProcessingTime:    took.Seconds(),
	}, nil
}

// IngestDocument makes sure the document at url is indexed and returns its
// registry record. An indexed document is reused only while the index still
// holds the passages the registry recorded for it; force always replaces
// them. Concurrent calls for the same document share one ingestion, which
// outlives any single caller's context.
func (s *Service) IngestDocument(ctx context.Context, url string, force bool) (*documents.Document, error) {
	id := fetch.DocumentID(url)

	if !force {
		if doc, err := s.docs.Get(ctx, id); err == nil && doc.Processed() {
			held := s.retriever.DocumentPassages(id)
			if held == doc.ChunkCount {
				s.logger.Debug("document already indexed", "document_id", id)
				return doc, nil
			}
			s.logger.Warn("registry and index disagree, reprocessing document",
				"document_id", id, "registered", doc.ChunkCount, "indexed", held)
		}
	}

	ch := s.ingests.DoChan(id, func() (any, error) {
		return s.ingest(context.WithoutCancel(ctx), id, url)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*documents.Document), nil
	}
}

// Reconcile marks indexed documents whose passages are missing from the
// index as unindexed, so the next request reprocesses them. It returns the
// number of records reset.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	docs, err := s.docs.List(ctx, documents.StatusIndexed)
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, d := range docs {
		if s.retriever.DocumentPassages(d.ID) == d.ChunkCount {
			continue
		}
		if err := s.docs.SetStatus(ctx, d.ID, documents.StatusUnindexed, 0, ""); err != nil {
			return reset, err
		}
		reset++
	}
	if reset > 0 {
		s.logger.Warn("reset documents missing from the index", "documents", reset)
	}
	return reset, nil
}

func (s *Service) ingest(ctx context.Context, id, url string) (*documents.Document, error) {
	if err := s.docs.Upsert(ctx, documents.Document{ID: id, URL: url}); err != nil {
		return nil, err
	}
	if err := s.docs.SetStatus(ctx, id, documents.StatusIndexing, 0, ""); err != nil {
		return nil, err
	}

	fail := func(err error) (*documents.Document, error) {
		if serr := s.docs.SetStatus(context.WithoutCancel(ctx), id, documents.StatusFailed, 0, err.Error()); serr != nil {
			s.logger.Error("recording document failure", "document_id", id, "error", serr)
		}
		s.logger.Error("document ingestion failed", "document_id", id, "error", err)
		return nil, err
	}

	pages, info, err := s.fetcher.FetchAndExtract(ctx, url)
	if info != nil {
		if uerr := s.docs.Upsert(ctx, documents.Document{
			ID:       id,
			URL:      url,
			Filename: info.Filename,
			FileSize: info.Size,
			MIMEType: info.MIMEType,
		}); uerr != nil {
			s.logger.Warn("updating document info", "document_id", id, "error", uerr)
		}
	}
	if err != nil {
		return fail(err)
	}

	// Reprocessing is whole-document: drop any earlier passages first.
	if _, err := s.retriever.RemoveDocument(ctx, id); err != nil {
		return fail(err)
	}

	n, err := s.retriever.Ingest(ctx, id, pages)
	if err != nil {
		return fail(err)
	}
	if err := s.docs.SetStatus(ctx, id, documents.StatusIndexed, n, ""); err != nil {
		return nil, err
	}
	return s.docs.Get(ctx, id)
}

// ProcessQuery answers a single question. Pipeline failures are reported
// in the response, not as an error.
func (s *Service) ProcessQuery(ctx context.Context, req QueryRequest) (*answer.QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	return s.answerQuestion(ctx, req.Query, req.DocumentID), nil
}

func (s *Service) answerQuestion(ctx context.Context, query, documentID string) *answer.QueryResponse {
	start := time.Now()

	var intent *answer.StructuredQuery
	if s.opts.ExtractIntent {
		sq := s.answerer.ExtractIntent(ctx, query)
		intent = &sq
	}

	var resp *answer.QueryResponse
	res, err := s.retriever.Retrieve(ctx, query, 0, documentID)
	if err != nil {
		s.logger.Error("error processing query", "error", err)
		resp = answer.Degraded(query, "Error processing query", err)
	} else {
		resp = s.answerer.Answer(ctx, query, res.Results)
		resp.MatchedClauses = res.Matches
	}
	resp.StructuredQuery = intent
	resp.ProcessingTime = time.Since(start).Seconds()

	s.logger.Info("query processed",
		"document_id", documentID,
		"confidence", resp.Confidence,
		"matches", len(resp.MatchedClauses),
		"took", time.Since(start),
	)
	s.record(ctx, documentID, resp, start)
	return resp
}

func (s *Service) record(ctx context.Context, documentID string, resp *answer.QueryResponse, start time.Time) {
	if s.history == nil {
		return
	}
	_, err := s.history.Log(context.WithoutCancel(ctx), history.Entry{
		Timestamp:    start,
		DocumentID:   documentID,
		Query:        resp.Query,
		Answer:       resp.Result,
		Confidence:   resp.Confidence,
		MatchCount:   len(resp.MatchedClauses),
		ProcessingMS: time.Since(start).Milliseconds(),
	})
	if err != nil {
		s.logger.Warn("query log write failed", "error", err)
	}
}

// ClearIndex empties the index and the document registry.
func (s *Service) ClearIndex(ctx context.Context) error {
	if err := s.retriever.Clear(ctx); err != nil {
		return err
	}
	if _, err := s.docs.Clear(ctx); err != nil {
		return err
	}
	return nil
}

// RemoveDocument drops a document from the index and the registry and
// returns how many passages were removed.
func (s *Service) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	n, err := s.retriever.RemoveDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	derr := s.docs.Delete(ctx, documentID)
	if errors.Is(derr, documents.ErrNotFound) {
		if n == 0 {
			return 0, ErrDocumentNotFound
		}
		derr = nil
	}
	return n, derr
}

// Documents returns the document registry.
func (s *Service) Documents() *documents.Store { return s.docs }

// History returns the query log, which may be nil.
func (s *Service) History() *history.Store { return s.history }

// Retriever returns the retrieval orchestrator.
func (s *Service) Retriever() *retrieval.Orchestrator { return s.retriever }
