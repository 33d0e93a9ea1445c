package analysis

import (
	"context"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/errors"
	"github.com/ZanzyTHEbar/judge-relay/internal/llm"
	"github.com/ZanzyTHEbar/judge-relay/internal/monitoring"
	"github.com/ZanzyTHEbar/judge-relay/internal/types"
)

// Result is the success envelope of an analysis run
type Result struct {
	Success  bool     `json:"success"`
	Analysis Analysis `json:"analysis"`
}

// Analyzer turns aggregate statistics into an analysis through an AI backend
type Analyzer struct {
	backend llm.Backend
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

// NewAnalyzer creates an analyzer. A nil backend is allowed; Analyze then
// reports a configuration error.
func NewAnalyzer(backend llm.Backend, metrics *monitoring.Metrics, logger *monitoring.Logger) *Analyzer {
	return &Analyzer{
		backend: backend,
		metrics: metrics,
		logger:  logger,
	}
}

// Configured reports whether a backend is available
func (a *Analyzer) Configured() bool {
	return a.backend != nil
}

// Provider returns the backend name, or "none"
func (a *Analyzer) Provider() string {
	if a.backend == nil {
		return "none"
	}
	return a.backend.Name()
}

// Analyze runs one analysis. Only failures that happen before a reply is
// received are returned; any reply, however malformed, yields a Result.
func (a *Analyzer) Analyze(ctx context.Context, stats types.Stats) (*Result, *errors.AppError) {
	if a.backend == nil {
		return nil, errors.NewConfigurationError("AI analysis is not configured", nil)
	}

	start := time.Now()

	reply, err := a.backend.Complete(ctx, SystemPrompt, BuildPrompt(stats))
	if err != nil {
		if a.metrics != nil {
			a.metrics.IncrementAnalysisFailure()
		}
		return nil, errors.NewAIError(err.Error(), err)
	}

	result, usedFallback := Recover(reply, stats)
	injected := EnsureRoadmap(result)

	if a.metrics != nil {
		a.metrics.RecordAnalysis(usedFallback, injected)
	}
	if a.logger != nil {
		a.logger.AnalysisLogger(a.backend.Name(), stats.TotalSolved, usedFallback, injected, time.Since(start))
		if usedFallback {
			a.logger.Debug("Analysis reply not usable, fallback applied", "reply_length", len(reply))
		}
	}

	return &Result{Success: true, Analysis: result}, nil
}
