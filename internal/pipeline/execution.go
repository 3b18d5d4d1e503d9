package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"escrowetl/internal/datasource"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/events"
	"escrowetl/internal/metrics"
	"escrowetl/internal/schema"
	"escrowetl/internal/storage"
)

// Progress checkpoints.
const (
	pctExtracting   = 0
	pctFirstFile    = 20
	pctTransforming = 40
	pctLoading      = 70
	pctDone         = 100
)

// stageKinds lists the error kinds each stage may report. Anything else
// leaving a stage is reported as critical.
var stageKinds = map[State][]etlerr.Kind{
	StateExtracting:   {etlerr.KindFormat, etlerr.KindSchema},
	StateTransforming: {etlerr.KindReconciliation},
	StateLoading:      {etlerr.KindConnection, etlerr.KindSchema, etlerr.KindIntegrity},
}

// execution is the state of one run. Only the run goroutine mutates it,
// except for the progress and state fields, which extraction goroutines and
// Run.State also touch under mu.
type execution struct {
	o     *Orchestrator
	req   Request
	sink  events.Sink
	runID string

	mu      sync.Mutex
	state   State
	percent int

	res Result
}

func (o *Orchestrator) newExecution(req Request, sink events.Sink) *execution {
	id := o.newRunID()
	return &execution{
		o:     o,
		req:   req,
		sink:  sink,
		runID: id,
		state: StateIdle,
		res: Result{
			RunID:      id,
			Target:     req.Backend.Describe(),
			FinalState: StateIdle,
		},
	}
}

func (e *execution) currentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// execute drives the state machine to done or error.
func (e *execution) execute(ctx context.Context) (res Result, err error) {
	e.res.StartedAt = time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = panicErr("pipeline", p)
		}
		if err != nil {
			e.fail(err)
		}
		e.res.Duration = time.Since(e.res.StartedAt)
		res = e.res
		if err == nil {
			log.Info("pipeline: run finished", "run_id", e.runID, "rows", res.Counts.Load.TotalRows, "elapsed", res.Duration)
			return
		}
		log.Warn("pipeline: run failed", "run_id", e.runID, "kind", res.ErrorKind, "err", err)
	}()

	e.transition(StateExtracting, pctExtracting, "Extracting input files")
	bal, red, err := e.extract(ctx)
	if err != nil {
		return res, err
	}

	e.transition(StateTransforming, pctTransforming, "Transforming into star schema")
	out, err := e.transformStage(bal, red)
	if err != nil {
		return res, err
	}

	e.transition(StateLoading, pctLoading, "Loading into "+e.res.Target)
	loaded, err := e.load(ctx, out)
	if err != nil {
		return res, err
	}

	e.res.Counts.Load = LoadCounts{
		Accounts:    loaded.Accounts,
		Balances:    loaded.Balances,
		Redemptions: loaded.Redemptions,
		TotalRows:   loaded.Total(),
	}
	e.res.Success = true
	e.transition(StateDone, pctDone, "Done")
	e.log(events.LevelSuccess, "ETL run completed",
		fmt.Sprintf("run %s: %d accounts, %d balance facts, %d redemption facts loaded into %s (%d warnings)",
			e.runID, loaded.Accounts, loaded.Balances, loaded.Redemptions, e.res.Target, e.res.Warnings))
	return res, nil
}

func (e *execution) extract(ctx context.Context) (bal, red *schema.Table, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(e.o.job, "extract", err, time.Since(start)) }()

	var (
		g              errgroup.Group
		first          sync.Once
		balErr, redErr error
	)
	read := func(role schema.Role, src datasource.Source, dst **schema.Table, errp *error) func() error {
		return func() error {
			*errp = guard("extract "+string(role), func() error {
				t, err := e.o.extractor.Extract(ctx, src, role)
				*dst = t
				return err
			})
			if *errp != nil {
				return *errp
			}
			first.Do(func() { e.progress("Extracting input files", pctFirstFile) })
			return nil
		}
	}
	g.Go(read(schema.RoleBalances, e.req.Balances, &bal, &balErr))
	g.Go(read(schema.RoleRedemptions, e.req.Redemptions, &red, &redErr))
	_ = g.Wait()

	// Balances win when both fail.
	if balErr != nil {
		return nil, nil, e.classify(StateExtracting, balErr)
	}
	if redErr != nil {
		return nil, nil, e.classify(StateExtracting, redErr)
	}

	for _, t := range []*schema.Table{bal, red} {
		e.log(events.LevelInfo, fmt.Sprintf("Read %s file", t.Role),
			fmt.Sprintf("%s: %d rows, %d period columns, %d warnings, fingerprint %s",
				t.Source, len(t.Rows), len(t.PeriodColumns), len(t.Warnings), t.Fingerprint))
		e.warn(t.Warnings)
	}
	e.res.Counts.Extraction = ExtractionCounts{BalancesRows: len(bal.Rows), RedemptionsRows: len(red.Rows)}
	metrics.RecordRow(e.o.job, metrics.RowsExtracted, int64(len(bal.Rows)+len(red.Rows)))
	return bal, red, nil
}

func (e *execution) transformStage(bal, red *schema.Table) (out *schema.Output, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(e.o.job, "transform", err, time.Since(start)) }()

	err = guard("transform", func() error {
		var terr error
		out, terr = e.o.transform(bal, red)
		return terr
	})
	if err != nil {
		return nil, e.classify(StateTransforming, err)
	}

	e.warn(out.Warnings)
	e.res.Counts.Transformation = TransformationCounts{
		Accounts:        len(out.Accounts),
		BalanceFacts:    len(out.Balances),
		RedemptionFacts: len(out.Redemptions),
	}
	e.log(events.LevelInfo, "Built star schema",
		fmt.Sprintf("%d accounts, %d balance facts, %d redemption facts",
			len(out.Accounts), len(out.Balances), len(out.Redemptions)))
	metrics.RecordRow(e.o.job, metrics.RowsTransformed, int64(len(out.Balances)+len(out.Redemptions)))
	return out, nil
}

func (e *execution) load(ctx context.Context, out *schema.Output) (res storage.LoadResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(e.o.job, "load", err, time.Since(start)) }()

	err = guard("load", func() error {
		var lerr error
		res, lerr = e.o.loader.Load(ctx, e.req.Backend, e.runID, out)
		return lerr
	})
	if err != nil {
		return storage.LoadResult{}, e.classify(StateLoading, err)
	}
	metrics.RecordRow(e.o.job, metrics.RowsInserted, res.Total())
	metrics.RecordBatches(e.o.job, res.Batches)
	return res, nil
}

// classify keeps a stage's documented error kinds and turns everything else
// into a critical error.
func (e *execution) classify(stage State, err error) error {
	kind := etlerr.KindOf(err)
	if slices.Contains(stageKinds[stage], kind) || kind == etlerr.KindCritical {
		return err
	}
	return &etlerr.Error{Kind: etlerr.KindCritical, Op: "pipeline " + string(stage), Err: err}
}

// guard runs fn and turns a panic into a critical error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicErr(op, p)
		}
	}()
	return fn()
}

func panicErr(op string, p any) error {
	log.Error("pipeline: recovered panic", "op", op, "panic", p, "stack", string(debug.Stack()))
	return etlerr.New(etlerr.KindCritical, op, "panic: %v", p)
}
