package detect

import "context"

// Engine is the full input-detection pipeline: pattern matcher, confidence
// router, ensemble arbiter, and the fusion policy that combines their
// outputs. It is stateless per call; all shared state lives in the loaded
// artifacts its layers were constructed with.
type Engine struct {
	matcher *Matcher
	router  *Router
	arbiter *Arbiter
}

func NewEngine(matcher *Matcher, router *Router, arbiter *Arbiter) *Engine {
	return &Engine{matcher: matcher, router: router, arbiter: arbiter}
}

// Detect classifies text and returns the fused verdict plus ensemble
// diagnostics. It never returns an error: layer failures degrade toward the
// more conservative of the available signals inside the router.
func (e *Engine) Detect(ctx context.Context, text string) (Verdict, Diagnostics) {
	normalized := Normalize(text)

	signal := e.matcher.Check(normalized)
	routed, scores := e.router.Route(ctx, normalized, signal)
	diagnostics := e.arbiter.Analyze(scores)
	verdict := Fuse(signal, routed)

	return verdict, diagnostics
}
