package shield

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/soteria-labs/soteria/pkg/cache"
	"github.com/soteria-labs/soteria/pkg/detect"
	"github.com/soteria-labs/soteria/pkg/threat"
)

// CoreLogic is the protected application capability: opaque to the shield,
// invoked only with a bounded deadline.
type CoreLogic func(ctx context.Context, input string) (string, error)

// Response is the final outcome of a guarded request. When Stage is not
// StageAllowed the core-logic output is suppressed, even if it was already
// computed speculatively.
type Response struct {
	Stage        Stage          `json:"stage"`
	Output       string         `json:"output,omitempty"`
	InputVerdict detect.Verdict `json:"input_verdict"`
	OutputReport *Report        `json:"output_report,omitempty"`
	CacheTier    cache.Tier     `json:"cache_tier,omitempty"`
}

// Allowed reports whether the caller may see the output.
func (r Response) Allowed() bool { return r.Stage == StageAllowed }

// Shield runs the guarded request path: cached input screening, the core
// logic, and output validation.
//
// With speculative execution enabled, input screening and core logic start
// concurrently; the core result is joined only after the input verdict
// resolves to allowed, and is discarded unseen when it resolves to blocked.
type Shield struct {
	engine  *detect.Engine
	store   *cache.Store
	output  *OutputValidator
	sink    FailureSink
	metrics *Metrics

	speculative bool
	coreTimeout time.Duration
}

// Options tunes the orchestrator.
type Options struct {
	// Speculative starts core logic before the input verdict is known.
	// Only sound when core logic has no irreversible side effects; that is
	// a per-deployment decision, so it is a switch, not a default you can
	// rely on.
	Speculative bool
	// CoreTimeout bounds one core-logic invocation. Default 30s.
	CoreTimeout time.Duration
	// Sink receives failure records. May be nil.
	Sink FailureSink
	// Metrics receives counters. When nil a private set is created.
	Metrics *Metrics
}

// New builds a shield. engine, store, and output must be non-nil.
func New(engine *detect.Engine, store *cache.Store, output *OutputValidator, opts Options) *Shield {
	if opts.CoreTimeout <= 0 {
		opts.CoreTimeout = 30 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	return &Shield{
		engine:      engine,
		store:       store,
		output:      output,
		sink:        opts.Sink,
		metrics:     opts.Metrics,
		speculative: opts.Speculative,
		coreTimeout: opts.CoreTimeout,
	}
}

// Metrics returns the shield's counter set.
func (s *Shield) Metrics() *Metrics { return s.metrics }

// CacheStats returns the verdict cache's hit/miss counters.
func (s *Shield) CacheStats() cache.Stats { return s.store.Stats() }

// Detect runs input screening only, through the cache.
func (s *Shield) Detect(ctx context.Context, input string) (detect.Verdict, cache.Tier, error) {
	verdict, diags, tier, err := s.screen(ctx, input)
	if err != nil {
		return detect.Verdict{}, cache.TierNone, err
	}
	if diags != nil && diags.Escalate {
		s.metrics.escalated.Add(1)
		log.Printf("shield: ensemble disagreement %.2f flagged input for review", diags.DisagreementScore)
	}
	return verdict, tier, nil
}

// Guard runs the full path for one request.
func (s *Shield) Guard(ctx context.Context, input string, core CoreLogic) (Response, error) {
	start := time.Now()

	coreCtx, cancelCore := context.WithTimeout(ctx, s.coreTimeout)
	defer cancelCore()

	type coreResult struct {
		out string
		err error
	}
	var coreCh chan coreResult
	if s.speculative {
		coreCh = make(chan coreResult, 1)
		go func() {
			out, err := core(coreCtx, input)
			coreCh <- coreResult{out: out, err: err}
		}()
	}

	verdict, diags, tier, err := s.screen(ctx, input)
	if err != nil {
		cancelCore()
		return Response{}, err
	}
	escalated := diags != nil && diags.Escalate

	if verdict.IsThreat {
		// The speculative core result, even if already computed, is
		// discarded unseen. Cancellation is best effort; correctness
		// comes from never reading coreCh on this path.
		cancelCore()
		resp := Response{Stage: StageBlockedInput, InputVerdict: verdict, CacheTier: tier}
		s.finish(resp.Stage, start, escalated)
		return resp, nil
	}

	var out string
	if s.speculative {
		result := <-coreCh
		if result.err != nil {
			return Response{}, fmt.Errorf("core logic: %w", result.err)
		}
		out = result.out
	} else {
		computed, err := core(coreCtx, input)
		if err != nil {
			return Response{}, fmt.Errorf("core logic: %w", err)
		}
		out = computed
	}

	report := s.output.Validate(ctx, out, input)
	if !report.Safe {
		s.logOutputFailure(ctx, input, out, report)
		resp := Response{
			Stage:        StageBlockedOutput,
			InputVerdict: verdict,
			OutputReport: &report,
			CacheTier:    tier,
		}
		s.finish(resp.Stage, start, escalated)
		return resp, nil
	}

	resp := Response{
		Stage:        StageAllowed,
		Output:       out,
		InputVerdict: verdict,
		OutputReport: &report,
		CacheTier:    tier,
	}
	s.finish(resp.Stage, start, escalated)
	return resp, nil
}

// screen runs the cache-wrapped detection engine. diags is nil when the
// verdict came from a cache tier.
func (s *Shield) screen(ctx context.Context, input string) (detect.Verdict, *detect.Diagnostics, cache.Tier, error) {
	var diags *detect.Diagnostics
	res, err := s.store.Do(ctx, input, func(ctx context.Context, normalized string) (detect.Verdict, error) {
		verdict, d := s.engine.Detect(ctx, normalized)
		diags = &d
		return verdict, nil
	})
	if err != nil {
		return detect.Verdict{}, nil, cache.TierNone, err
	}
	return res.Verdict, diags, res.Tier, nil
}

// logOutputFailure appends the evidence record for an input-guard miss.
// This is the sole learning contract of the pipeline: it collects, the
// offline optimizer trains.
func (s *Shield) logOutputFailure(ctx context.Context, input, output string, report Report) {
	if s.sink == nil {
		return
	}
	rec := NewFailureRecord(StageBlockedOutput, input, output, detect.Verdict{
		IsThreat:   true,
		ThreatType: threat.OutputManipulation,
		Confidence: report.Confidence,
		Reasoning:  report.Details,
		Source:     detect.LayerOutput,
	})
	if err := s.sink.Append(ctx, rec); err != nil {
		log.Printf("shield: failure record append failed: %v", err)
	}
}

func (s *Shield) finish(stage Stage, start time.Time, escalated bool) {
	s.metrics.record(stage, uint64(time.Since(start).Milliseconds()), escalated)
}
