// Package batch runs scoring over many candidate sites concurrently, with
// per-project failure isolation.
package batch

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridatlas/siterank-cli/internal/scoring"
)

const defaultConcurrency = 8

// Failure records one project that could not be scored. The rest of the
// batch is unaffected.
type Failure struct {
	ProjectID string `json:"project_id"`
	Reason    string `json:"reason"`
}

// Report is the outcome of one batch run. Results are sorted by score
// descending; failures by project id.
type Report struct {
	RunID     string         `json:"run_id"`
	PersonaID string         `json:"persona_id"`
	Method    scoring.Method `json:"method"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	Results  []*scoring.CompositeResult `json:"results"`
	Failures []Failure                  `json:"failures,omitempty"`
}

// Orchestrator fans batch scoring out over a bounded worker group.
type Orchestrator struct {
	engine      *scoring.Engine
	concurrency int
}

// New creates an orchestrator. Non-positive concurrency gets the default.
func New(engine *scoring.Engine, concurrency int) (*Orchestrator, error) {
	if engine == nil {
		return nil, eris.New("batch: scoring engine is required")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Orchestrator{engine: engine, concurrency: concurrency}, nil
}

// Run scores every input under one persona. A project that fails validation
// or evaluation lands in the report's Failures; it never aborts the batch.
// Only catalog unavailability, an unknown persona, or context cancellation
// fail the run as a whole.
func (o *Orchestrator) Run(ctx context.Context, inputs []scoring.ProjectInput, personaID string, method scoring.Method) (*Report, error) {
	started := time.Now()
	runID := uuid.NewString()

	p, err := o.engine.Persona(personaID)
	if err != nil {
		return nil, err
	}

	// One snapshot for the whole run so every project sees identical data.
	cat, err := o.engine.Snapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "batch: catalog unavailable")
	}

	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("persona", personaID),
		zap.String("method", string(method)),
	)
	log.Info("starting batch run",
		zap.Int("projects", len(inputs)),
		zap.Int("concurrency", o.concurrency),
	)

	type evaluated struct {
		id    string
		comps scoring.ComponentSet
		facts scoring.Facts
	}

	var (
		mu        sync.Mutex
		ok        []evaluated
		failures  []Failure
		succeeded atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			comps, facts, err := o.engine.Evaluate(cat, input, p)
			if err != nil {
				log.Warn("project failed",
					zap.String("project_id", input.ProjectID),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, Failure{ProjectID: input.ProjectID, Reason: err.Error()})
				mu.Unlock()
				return nil // isolate the failure, keep the batch going
			}
			succeeded.Add(1)
			mu.Lock()
			ok = append(ok, evaluated{id: input.ProjectID, comps: comps, facts: facts})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch: run aborted")
	}

	var results []*scoring.CompositeResult
	switch method {
	case scoring.MethodTOPSIS:
		ids := make([]string, len(ok))
		comps := make([]scoring.ComponentSet, len(ok))
		facts := make([]scoring.Facts, len(ok))
		for i, e := range ok {
			ids[i], comps[i], facts[i] = e.id, e.comps, e.facts
		}
		results, err = o.engine.FinalizeTOPSIS(ids, p, comps, facts)
		if err != nil {
			return nil, err
		}
	case scoring.MethodWeightedSum, "":
		for _, e := range ok {
			res, err := o.engine.FinalizeWeighted(e.id, p, e.comps, e.facts)
			if err != nil {
				return nil, err
			}
			results = append(results, res)
		}
		method = scoring.MethodWeightedSum
	default:
		return nil, eris.Errorf("batch: unknown method %q", method)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ProjectID < results[j].ProjectID
	})
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].ProjectID < failures[j].ProjectID
	})

	finished := time.Now()
	log.Info("batch run complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int("failed", len(failures)),
		zap.Duration("duration", finished.Sub(started)),
	)

	return &Report{
		RunID:      runID,
		PersonaID:  personaID,
		Method:     method,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
		Results:    results,
		Failures:   failures,
	}, nil
}
