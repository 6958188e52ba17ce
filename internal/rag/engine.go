package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/gate"
	"talk-to-krishna/internal/llm"
	"talk-to-krishna/internal/tracer"
)

// Engine answers questions with passages from the corpus.
type Engine interface {
	// Ask runs the pipeline for one query. A timed out request returns a
	// retryable Answer and a nil error; a cancelled one returns a nil Answer.
	Ask(ctx context.Context, q Query) (*Answer, error)
}

// Options configures a Pipeline.
type Options struct {
	// AnswerModel is used for synthesis.
	AnswerModel string
	// FastModel is used for understanding and reranking.
	FastModel string
	Timeout   time.Duration
}

// Pipeline is the staged Engine. It is immutable and safe for concurrent use.
type Pipeline struct {
	gate         *gate.Classifier
	understander *Understander
	retriever    *Retriever
	reranker     *Reranker
	tone         *ToneClassifier
	synthesizer  *Synthesizer
	templates    *Templates
	timeout      time.Duration
}

// NewPipeline wires every stage over store. dense and embedder may be nil,
// which disables the dense retrieval channel.
func NewPipeline(store *corpus.Store, dense DenseIndex, completer llm.Completer, embedder llm.Embedder, tuning *config.Tuning, opts Options) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("corpus store is required")
	}
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("invalid request timeout %s", opts.Timeout)
	}
	templates, err := NewTemplates(tuning.Texts)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		gate:         gate.New(tuning.Gate, tuning.Tone.CrisisPatterns),
		understander: NewUnderstander(completer, opts.FastModel, tuning),
		retriever:    NewRetriever(store, dense, embedder, tuning),
		reranker:     NewReranker(completer, opts.FastModel, tuning),
		tone:         NewToneClassifier(tuning.Tone),
		synthesizer:  NewSynthesizer(completer, opts.AnswerModel, tuning),
		templates:    templates,
		timeout:      opts.Timeout,
	}, nil
}

// run is the mutable state of one request.
type run struct {
	query     Query
	qc        QueryContext
	tone      Tone
	retrieval Retrieval
	shortlist []ScoredCandidate
	reranked  bool
	text      string
	evidence  []string
	routes    []Route
	latencies map[string]float64
}

func (r *run) route(route Route) {
	r.routes = append(r.routes, route)
}

// Ask implements Engine.
func (p *Pipeline) Ask(parent context.Context, q Query) (*Answer, error) {
	logger := contextutil.LoggerFromContext(parent)
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	r := &run{
		query:     q,
		tone:      ToneGeneral,
		latencies: make(map[string]float64),
	}

	for stage := StageGate; stage != StageDone; {
		if ctx.Err() != nil {
			return p.interrupted(parent, logger, r, stage)
		}

		logger.DebugContext(ctx, "stage started", "stage", stage.String())
		start := time.Now()
		stageCtx, span := tracer.StartStage(ctx, stage.String())
		next, err := p.step(stageCtx, logger, r, stage)
		tracer.EndStage(span, err)
		r.latencies[stage.String()] = milliseconds(time.Since(start))

		if ctx.Err() != nil {
			return p.interrupted(parent, logger, r, stage)
		}
		stage = next
	}

	answer := &Answer{
		Text:     r.text,
		Tone:     r.tone,
		Evidence: r.evidence,
		Routes:   r.routes,
	}
	if q.Debug {
		answer.Debug = r.debugInfo()
	}
	logger.InfoContext(ctx, "answer ready",
		"tone", answer.Tone,
		"evidence", answer.Evidence,
		"routes", answer.Routes,
	)
	return answer, nil
}

// step runs one stage and returns the next. Collaborator failures are
// resolved here by taking the stage's fallback edge; the returned error is
// only recorded on the stage span.
func (p *Pipeline) step(ctx context.Context, logger *slog.Logger, r *run, stage Stage) (Stage, error) {
	switch stage {
	case StageGate:
		verdict := p.gate.Classify(r.query.Text)
		switch {
		case verdict.Greeting:
			r.route(RouteGreeting)
			r.finish(p.templates.Greeting(), nil)
			return StageAssemble, nil
		case !verdict.InDomain:
			r.route(RouteRejected)
			r.finish(p.templates.Rejection(), nil)
			logger.InfoContext(ctx, "query rejected", "category", verdict.BlockedCategory)
			return StageAssemble, &StageError{Stage: StageGate, Err: ErrOutOfDomain}
		}
		return StageUnderstand, nil

	case StageUnderstand:
		qc, err := p.understander.Understand(ctx, r.query.Text, r.query.History)
		if err != nil {
			logger.WarnContext(ctx, "understanding failed, using raw query", "stage", stage.String(), "error", err)
			r.route(RouteUnderstandFallback)
			qc = p.understander.Fallback(r.query.Text, r.query.History)
		}
		r.qc = qc
		r.tone = p.tone.Classify(qc)
		return StageRetrieve, err

	case StageRetrieve:
		retrieval, err := p.retriever.Retrieve(ctx, r.qc)
		r.retrieval = retrieval
		if retrieval.DenseErr != nil {
			logger.WarnContext(ctx, "dense channel unavailable", "stage", stage.String(), "error", retrieval.DenseErr)
			r.route(RouteDenseUnavailable)
		}
		if err != nil {
			logger.WarnContext(ctx, "no candidates, using fallback answer", "stage", stage.String(), "error", err)
			r.route(RouteEmptyFallback)
			r.finish(p.templates.Fallback(r.tone, nil))
			return StageAssemble, err
		}
		return StageRerank, nil

	case StageRerank:
		shortlist, err := p.reranker.Rerank(ctx, r.qc, r.retrieval.Candidates)
		if err != nil {
			logger.WarnContext(ctx, "rerank failed, using retrieval order", "stage", stage.String(), "error", err)
			r.route(RouteUnrankedFallback)
			shortlist = p.reranker.Unranked(r.retrieval.Candidates)
		} else {
			r.reranked = true
		}
		r.shortlist = shortlist
		return StageSynthesize, err

	case StageSynthesize:
		passages := make([]corpus.Passage, len(r.shortlist))
		for i, c := range r.shortlist {
			passages[i] = c.Passage
		}
		draft, err := p.synthesizer.Synthesize(ctx, r.qc, r.tone, passages)
		if err != nil {
			logger.WarnContext(ctx, "synthesis failed, using template answer", "stage", stage.String(), "tone", r.tone, "error", err)
			r.route(RouteTemplateFallback)
			r.finish(p.templates.Fallback(r.tone, passages))
			return StageAssemble, err
		}
		r.finish(draft.Text, draft.Evidence)
		return StageAssemble, nil

	case StageAssemble:
		if r.evidence == nil {
			r.evidence = []string{}
		}
		if r.tone == ToneCrisis && len(r.evidence) > 1 {
			r.evidence = r.evidence[:1]
		}
		return StageDone, nil
	}
	return StageDone, fmt.Errorf("unknown stage %d", stage)
}

// finish records the answer text and its evidence.
func (r *run) finish(text string, evidence []string) {
	r.text = text
	r.evidence = evidence
}

// interrupted ends a run whose context is done. Caller cancellation returns
// no answer; the request deadline returns the retryable timeout answer.
func (p *Pipeline) interrupted(parent context.Context, logger *slog.Logger, r *run, stage Stage) (*Answer, error) {
	if err := parent.Err(); err != nil {
		logger.InfoContext(parent, "request cancelled", "stage", stage.String(), "error", err)
		return nil, &StageError{Stage: stage, Err: err}
	}
	logger.WarnContext(parent, "request timed out", "stage", stage.String(), "error", ErrTimeout, "timeout", p.timeout)
	r.route(RouteTimeout)
	answer := &Answer{
		Text:      p.templates.Timeout(),
		Tone:      r.tone,
		Evidence:  []string{},
		Retryable: true,
		Routes:    r.routes,
	}
	if r.query.Debug {
		answer.Debug = r.debugInfo()
	}
	return answer, nil
}

func (r *run) debugInfo() *DebugInfo {
	reranked := []string{}
	if r.reranked {
		for _, c := range r.shortlist {
			reranked = append(reranked, c.Passage.ID)
		}
	}
	return &DebugInfo{
		Rewritten:       r.qc.Rewritten,
		EmotionalState:  r.qc.EmotionalState,
		Intent:          r.qc.Intent,
		MatchedTriggers: r.retrieval.MatchedTriggers,
		Candidates:      debugCandidates(r.retrieval.Candidates),
		Reranked:        reranked,
		Routes:          append([]Route(nil), r.routes...),
		LatenciesMS:     r.latencies,
	}
}
