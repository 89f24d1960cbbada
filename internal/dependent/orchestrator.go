// Package dependent runs two-phase joins: a primary connection query, then
// one secondary query per primary id, merged back onto the primary rows.
package dependent

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/normalize"
	"github.com/onronder/p-958660-sub000/internal/query"
)

// PreviewNote labels previews that skipped the secondary phase.
const PreviewNote = "Preview shows primary records only; the full extraction will include dependent data"

// DefaultConcurrency bounds simultaneous secondary queries.
const DefaultConcurrency = 5

// QueryFunc executes one GraphQL document and returns its data object.
type QueryFunc func(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error)

// Result is the outcome of a preview or run.
type Result struct {
	Records   []models.Record
	Preview   bool
	Note      string
	Partial   bool
	FailedIDs []string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithSecondaryFailureHook is called once per failed secondary query.
func WithSecondaryFailureHook(fn func()) Option {
	return func(o *Orchestrator) { o.onSecondaryFailure = fn }
}

type Orchestrator struct {
	concurrency        int
	log                infralogger.Logger
	onSecondaryFailure func()
}

func NewOrchestrator(concurrency int, log infralogger.Logger, opts ...Option) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	o := &Orchestrator{concurrency: concurrency, log: log, onSecondaryFailure: func() {}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Preview runs the primary query only, capped at the preview size.
func (o *Orchestrator) Preview(ctx context.Context, exec QueryFunc, tmpl *Template, limit int) (*Result, error) {
	data, err := exec(ctx, tmpl.PrimaryQuery, map[string]any{"first": query.EffectiveLimit(limit, true)})
	if err != nil {
		return nil, err
	}
	return &Result{Records: normalize.Records(data), Preview: true, Note: PreviewNote}, nil
}

// Run executes both phases. Secondary failures are recorded on the affected
// rows; the run only fails when every secondary query failed.
func (o *Orchestrator) Run(ctx context.Context, exec QueryFunc, tmpl *Template, limit int) (*Result, error) {
	data, err := exec(ctx, tmpl.PrimaryQuery, map[string]any{"first": query.EffectiveLimit(limit, false)})
	if err != nil {
		return nil, err
	}
	primary := normalize.Records(data)
	ids := tmpl.ExtractIDs(primary)
	if len(ids) == 0 {
		return &Result{Records: tmpl.Merge(primary, nil)}, nil
	}

	related, failures := o.fanOut(ctx, exec, tmpl, ids)

	var (
		failedIDs []string
		firstErr  error
	)
	for i, id := range ids {
		if failures[i] == nil {
			continue
		}
		if firstErr == nil {
			firstErr = failures[i]
		}
		failedIDs = append(failedIDs, id)
	}

	if len(failedIDs) == len(ids) {
		o.log.Warn("Every dependent query failed",
			infralogger.String("template", tmpl.Name),
			infralogger.Int("ids", len(ids)),
			infralogger.Error(firstErr),
		)
		return nil, firstErr
	}

	merged := tmpl.Merge(primary, related)
	if len(failedIDs) > 0 {
		markFailures(merged, tmpl.AttachField, ids, failures)
		o.log.Warn("Dependent extraction partially failed",
			infralogger.String("template", tmpl.Name),
			infralogger.Int("failed", len(failedIDs)),
			infralogger.Int("ids", len(ids)),
		)
	}

	return &Result{Records: merged, Partial: len(failedIDs) > 0, FailedIDs: failedIDs}, nil
}

// fanOut runs one secondary query per id with bounded concurrency. A failed
// id never cancels its siblings.
func (o *Orchestrator) fanOut(
	ctx context.Context,
	exec QueryFunc,
	tmpl *Template,
	ids []string,
) (map[string][]models.Record, []error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		related  = make(map[string][]models.Record, len(ids))
		failures = make([]error, len(ids))
	)
	g.SetLimit(o.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = apperr.From(err)
				o.onSecondaryFailure()
				return nil
			}
			q, vars := tmpl.SecondaryQuery(id)
			raw, err := exec(ctx, q, vars)
			if err != nil {
				failures[i] = err
				o.onSecondaryFailure()
				return nil
			}
			rows := normalize.AtPath(raw, tmpl.SecondaryPath)
			mu.Lock()
			related[id] = rows
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return related, failures
}

func markFailures(rows []models.Record, field string, ids []string, failures []error) {
	messages := make(map[string]string, len(ids))
	for i, id := range ids {
		if failures[i] != nil {
			messages[id] = apperr.From(failures[i]).Message
		}
	}
	for _, row := range rows {
		if msg, failed := messages[rowID(row)]; failed {
			row[field] = []models.Record{}
			row[ErrorField] = msg
		}
	}
}
