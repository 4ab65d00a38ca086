// Package matching runs a single resume against a single job description. A match moves
// through four stages, each consuming only what the previous one produced:
//
//	EmbedDocuments -> EmbedCandidateSpans -> Rank -> Compose
package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/ranking"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/skills"
)

const (
	DefaultTopK = 3

	noteDegraded    = "remote embedding provider unavailable, local vectors used"
	noteEmptyResume = "insufficient content: resume text is empty"
	noteEmptyJob    = "insufficient content: job description is empty"
	noteNoSpans     = "no resume lines left to rank"
)

// Chain hands out request-scoped embedding sessions. *embedding.Chain implements it.
type Chain interface {
	Session() *embedding.Session
}

// Options tunes an Engine.
type Options struct {
	// TopK is the number of resume lines returned. Negative values return none.
	TopK    int
	Filters filtering.Config
}

// Request is one resume matched against one job description. Skills are raw names and are
// normalized by the engine.
type Request struct {
	ResumeText   string
	JobText      string
	ResumeSkills []string
	JobSkills    []string
}

// Engine matches resumes against job descriptions. It is safe for concurrent use.
type Engine struct {
	chain  Chain
	opts   Options
	logger *zap.Logger
}

// New creates an engine on top of chain.
func New(chain Chain, opts Options, log *zap.Logger) (*Engine, error) {
	if chain == nil {
		return nil, fmt.Errorf("embedding chain is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{chain: chain, opts: opts, logger: log}, nil
}

// documents is the output of the EmbedDocuments stage.
type documents struct {
	resume   embedding.Vector
	job      embedding.Vector
	provider string
}

// candidates is the output of the EmbedCandidateSpans stage.
type candidates struct {
	docs    documents
	spans   []ranking.Span
	vectors []embedding.Vector
}

// ranked is the output of the Rank stage.
type ranked struct {
	docs documents
	top  []ranking.Scored
}

// run carries the request-wide state that is not a stage output.
type run struct {
	req     Request
	session *embedding.Session
	logger  *zap.Logger
}

// Match scores req. Degenerate input yields a zero-similarity result with a note. An error
// is returned only when no embedding strategy works, the ranker receives inconsistent
// input or ctx is cancelled.
func (e *Engine) Match(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	r := &run{
		req:     req,
		session: e.chain.Session(),
		logger:  logger.WithRequest(e.logger, requestID),
	}

	r.enter(StageEmbedDocuments)
	docs, err := r.embedDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageEmbedDocuments, err)
	}

	r.enter(StageEmbedCandidateSpans)
	cands, err := r.embedCandidateSpans(ctx, docs, e.opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageEmbedCandidateSpans, err)
	}

	r.enter(StageRank)
	rk, err := r.rank(ctx, cands, e.topK())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageRank, err)
	}

	r.enter(StageCompose)
	result := r.compose(rk)
	result.RequestID = requestID

	r.logger.Info("match completed",
		zap.Int("score", result.Score),
		zap.Float64("confidence", result.Confidence),
		zap.String(logger.FieldProvider, result.Provider),
		zap.Bool("degraded", result.Degraded),
	)

	return result, nil
}

func (e *Engine) topK() int {
	if e.opts.TopK == 0 {
		return DefaultTopK
	}
	return e.opts.TopK
}

func (r *run) enter(stage Stage) {
	r.logger.Debug("match stage", zap.Stringer("stage", stage))
}

func (r *run) embedDocuments(ctx context.Context) (documents, error) {
	resume, err := r.session.Embed(ctx, []string{r.req.ResumeText}, false)
	if err != nil {
		return documents{}, fmt.Errorf("embedding resume: %w", err)
	}

	job, err := r.session.Embed(ctx, []string{r.req.JobText}, true)
	if err != nil {
		return documents{}, fmt.Errorf("embedding job description: %w", err)
	}

	// The session degraded between the two calls; the resume must share the job's space.
	if job.Provider != resume.Provider {
		resume, err = r.session.Embed(ctx, []string{r.req.ResumeText}, false)
		if err != nil {
			return documents{}, fmt.Errorf("re-embedding resume: %w", err)
		}
	}

	return documents{resume: resume.Vectors[0], job: job.Vectors[0], provider: job.Provider}, nil
}

func (r *run) embedCandidateSpans(ctx context.Context, docs documents, cfg filtering.Config) (candidates, error) {
	steps := filtering.Default()
	if !cfg.Dedupe {
		filtering.DisableByName(steps, filtering.DedupeName, "disabled in config")
	}
	for _, status := range filtering.Describe(steps) {
		r.logger.Debug("filter status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
		)
	}

	spans, err := filtering.Run(ctx, &cfg, filtering.Deps{Logger: r.logger}, steps, ranking.SplitLines(r.req.ResumeText))
	if err != nil {
		return candidates{}, fmt.Errorf("filtering spans: %w", err)
	}

	if len(spans) == 0 {
		return candidates{docs: docs, spans: spans, vectors: []embedding.Vector{}}, nil
	}

	batch, err := r.session.Embed(ctx, ranking.Texts(spans), false)
	if err != nil {
		return candidates{}, fmt.Errorf("embedding spans: %w", err)
	}

	if batch.Provider != docs.provider {
		r.logger.Info("re-embedding documents after provider degradation",
			zap.String("from", docs.provider),
			zap.String("to", batch.Provider),
		)
		docs, err = r.embedDocuments(ctx)
		if err != nil {
			return candidates{}, err
		}
		if docs.provider != batch.Provider {
			return candidates{}, fmt.Errorf("%w: spans from %s, documents from %s",
				embedding.ErrEmbeddingFailure, batch.Provider, docs.provider)
		}
	}

	return candidates{docs: docs, spans: spans, vectors: batch.Vectors}, nil
}

func (r *run) rank(ctx context.Context, cands candidates, k int) (ranked, error) {
	if err := ctx.Err(); err != nil {
		return ranked{}, err
	}

	top, err := ranking.TopK(cands.docs.job, cands.spans, cands.vectors, k)
	if err != nil {
		return ranked{}, err
	}

	return ranked{docs: cands.docs, top: top}, nil
}

func (r *run) compose(rk ranked) *Result {
	resumeSkills := skills.New(r.req.ResumeSkills...)
	c := scoring.Compose(rk.docs.resume, rk.docs.job, resumeSkills, skills.New(r.req.JobSkills...))

	var notes []string
	degraded := r.session.Degraded()
	if degraded != nil {
		notes = append(notes, noteDegraded)
	}
	if strings.TrimSpace(r.req.ResumeText) == "" {
		notes = append(notes, noteEmptyResume)
	} else if len(rk.top) == 0 {
		notes = append(notes, noteNoSpans)
	}
	if strings.TrimSpace(r.req.JobText) == "" {
		notes = append(notes, noteEmptyJob)
	}

	result := &Result{
		Score:         c.Percent,
		Confidence:    c.Confidence,
		Similarity:    c.Similarity,
		RawSimilarity: c.RawSimilarity,
		Overlap:       c.Overlap,
		MissingSkills: c.Missing,
		MatchedSkills: c.Matched,
		Explanation:   scoring.Explain(c, notes...),
		TopSpans:      rk.top,
		Provider:      rk.docs.provider,
		Degraded:      degraded != nil,
		Notes:         notes,
		Insights:      scoring.Analyze(r.req.ResumeText, r.req.JobText, resumeSkills.Len()),
		Suggestions:   scoring.Suggestions(r.req.ResumeText),
	}
	if degraded != nil {
		result.DegradedReason = degraded.Error()
	}
	if result.Notes == nil {
		result.Notes = []string{}
	}

	return result
}
