// Package pipeline runs one escrow ETL job: extract both input files,
// transform them into the star schema, and load it into the configured
// backend.
//
// A run moves through idle → extracting → transforming → loading → done, or
// ends in error from any non-idle state. Every transition is reported to an
// events.Sink as a log event and a progress event, and every run that passes
// request validation ends with a Result.
package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"escrowetl/internal/config"
	"escrowetl/internal/datasource"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/events"
	"escrowetl/internal/extract"
	"escrowetl/internal/schema"
	"escrowetl/internal/storage"
	"escrowetl/internal/transformer"
)

// State is a step of the run state machine.
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateDone         State = "done"
	StateError        State = "error"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool { return s == StateDone || s == StateError }

// Request asks for one run over a pair of input files.
type Request struct {
	Balances    datasource.Source
	Redemptions datasource.Source
	Backend     config.Backend
}

// Validate rejects a request that cannot start a run.
func (r Request) Validate() error {
	var missing []string
	if r.Balances == nil {
		missing = append(missing, "balances file")
	}
	if r.Redemptions == nil {
		missing = append(missing, "redemptions file")
	}
	if r.Backend == nil {
		missing = append(missing, "backend")
	}
	if len(missing) > 0 {
		return etlerr.New(etlerr.KindValidation, "pipeline: request", "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ExtractionCounts are the rows read from each input.
type ExtractionCounts struct {
	BalancesRows    int `json:"balances_rows"`
	RedemptionsRows int `json:"redemptions_rows"`
}

// TransformationCounts are the star schema rows built in memory.
type TransformationCounts struct {
	Accounts        int `json:"accounts"`
	BalanceFacts    int `json:"balance_facts"`
	RedemptionFacts int `json:"redemption_facts"`
}

// LoadCounts are the rows committed to the backend.
type LoadCounts struct {
	Accounts    int64 `json:"accounts"`
	Balances    int64 `json:"balances"`
	Redemptions int64 `json:"redemptions"`
	TotalRows   int64 `json:"total_rows"`
}

// Counts groups the per-stage counters of a run.
type Counts struct {
	Extraction     ExtractionCounts     `json:"extraction"`
	Transformation TransformationCounts `json:"transformation"`
	Load           LoadCounts           `json:"load"`
}

// Result summarizes a finished run. Counts of stages that did not complete
// stay zero.
type Result struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id"`
	// Target describes the backend without credentials.
	Target       string        `json:"target"`
	Counts       Counts        `json:"counts"`
	Warnings     int           `json:"warnings"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorSummary string        `json:"error_summary,omitempty"`
	FinalState   State         `json:"final_state"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Extractor reads one input file.
type Extractor interface {
	Extract(ctx context.Context, src datasource.Source, role schema.Role) (*schema.Table, error)
}

// Loader commits a transformed run to a backend.
type Loader interface {
	Load(ctx context.Context, b config.Backend, runID string, out *schema.Output) (storage.LoadResult, error)
}

// Orchestrator runs pipelines. It keeps no per-run state, so one value can
// serve many sequential or concurrent runs.
type Orchestrator struct {
	extractor Extractor
	transform func(balances, redemptions *schema.Table) (*schema.Output, error)
	loader    Loader
	job       string
	newRunID  func() string
}

// New builds an Orchestrator from the extraction, table and batching
// settings of app.
func New(app config.App) *Orchestrator {
	app = app.WithDefaults()
	return NewWith(extract.New(ExtractOptions(app)), storage.NewLoader(app), app.Job)
}

// ExtractOptions maps the extraction settings of app onto extract.Options.
func ExtractOptions(app config.App) extract.Options {
	app = app.WithDefaults()
	return extract.Options{
		Delimiter:   delimiter(app.Extract.Delimiter),
		Sheet:       app.Extract.Sheet,
		MaxFileSize: app.MaxFileSize(),
	}
}

// NewWith builds an Orchestrator from explicit stages.
func NewWith(x Extractor, l Loader, job string) *Orchestrator {
	if job == "" {
		job = config.DefaultJob
	}
	return &Orchestrator{
		extractor: x,
		transform: transformer.Build,
		loader:    l,
		job:       job,
		newRunID:  uuid.NewString,
	}
}

func delimiter(s string) rune {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// Run executes req synchronously, reporting to sink (nil discards events).
//
// A request that fails validation returns a ValidationError without emitting
// events or entering the state machine. Otherwise the returned Result is
// always populated; the error is non-nil exactly when the run ended in
// StateError and carries the classified kind.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink events.Sink) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{
			FinalState:   StateIdle,
			ErrorKind:    etlerr.KindValidation.String(),
			ErrorSummary: err.Error(),
		}, err
	}
	if sink == nil {
		sink = events.Discard
	}
	return o.newExecution(req, sink).execute(ctx)
}

// Start validates req and runs it in the background. Events are delivered,
// in order, on the returned Run's Events channel, which closes after the
// final event.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	bus := events.NewBus()
	e := o.newExecution(req, bus)
	r := &Run{
		id:   e.runID,
		bus:  bus,
		exec: e,
		done: make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		defer bus.Close()
		r.res, r.err = e.execute(ctx)
	}()
	return r, nil
}

// Run is a handle on a background pipeline run.
type Run struct {
	id   string
	bus  *events.Bus
	exec *execution
	done chan struct{}

	res Result
	err error
}

// ID is the run id stamped on every persisted row.
func (r *Run) ID() string { return r.id }

// Events delivers the run's log and progress events. Drain it until closed.
func (r *Run) Events() <-chan events.Event { return r.bus.Events() }

// Done is closed once the run reached a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// State is the current state of the run.
func (r *Run) State() State { return r.exec.currentState() }

// Result waits for the run to finish and returns what Orchestrator.Run
// would have returned.
func (r *Run) Result() (Result, error) {
	<-r.done
	return r.res, r.err
}
