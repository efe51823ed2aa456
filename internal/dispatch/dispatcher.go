package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/greatstep93/client-app/internal/history"
	"github.com/greatstep93/client-app/internal/httpclient"
)

// DefaultExitCode is what the process exits with once a run is done.
// 255 is how a shell reports exit(-1).
const DefaultExitCode = 255

// Options configures a run
type Options struct {
	Count    int
	Target   string
	Measure  Measure
	ExitCode int
}

// Validate validates the run options
func (o Options) Validate() error {
	if o.Count <= 0 {
		return fmt.Errorf("count must be greater than 0")
	}
	if o.Target == "" {
		return fmt.Errorf("target URL is required")
	}
	if _, err := ParseMeasure(string(o.Measure)); err != nil {
		return err
	}
	return nil
}

// Journal records runs. *history.Journal satisfies it.
type Journal interface {
	CreateRun(run *history.Run) error
	FinishRun(run *history.Run) error
}

// Report is the outcome of one run
type Report struct {
	Count     int
	Launched  int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Measure   Measure
	Mode      Mode
	RunID     int64
}

// Option customizes a Dispatcher
type Option func(*Dispatcher)

// WithJournal records every run in j
func WithJournal(j Journal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithExit replaces os.Exit as the terminal action of Start
func WithExit(exit func(code int)) Option {
	return func(d *Dispatcher) { d.exit = exit }
}

// Dispatcher fires Count GET requests at Target, one unit of work each
type Dispatcher struct {
	opts     Options
	client   *httpclient.Client
	launcher Launcher
	log      *slog.Logger
	journal  Journal
	now      func() time.Time
	exit     func(code int)
	state    atomic.Int32

	succeeded atomic.Int64
	failed    atomic.Int64
}

// New creates a dispatcher in the idle state
func New(opts Options, client *httpclient.Client, launcher Launcher, log *slog.Logger, options ...Option) (*Dispatcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.Measure == "" {
		opts.Measure = MeasureCompletion
	}
	if client == nil || launcher == nil || log == nil {
		return nil, fmt.Errorf("client, launcher and logger are required")
	}

	d := &Dispatcher{
		opts:     opts,
		client:   client,
		launcher: launcher,
		log:      log,
		now:      time.Now,
		exit:     os.Exit,
	}
	for _, o := range options {
		o(d)
	}
	return d, nil
}

// State returns the current lifecycle stage
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) transition(from, to State) error {
	if !d.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("cannot move to %s from %s", to, d.State())
	}
	return nil
}

// Start performs the run and then terminates the process with the configured
// exit code. The exit is unconditional: a run is fire-and-report, not a service.
func (d *Dispatcher) Start(ctx context.Context) (*Report, error) {
	report, err := d.Run(ctx)
	if err != nil {
		d.log.Error("run failed", slog.Any("error", err))
	}
	d.exit(d.opts.ExitCode)
	return report, err
}

// Run launches every unit, waits for all of them and reports the elapsed
// time. It can be called once per Dispatcher.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	if err := d.transition(StateIdle, StateDispatching); err != nil {
		return nil, err
	}

	lightweight := "off"
	if d.launcher.Mode() == ModeLightweight {
		lightweight = "on"
	}
	d.log.Info(fmt.Sprintf("start from %d requests and virtual threads %s", d.opts.Count, lightweight),
		slog.Int("count", d.opts.Count),
		slog.String("mode", string(d.launcher.Mode())),
		slog.String("target", d.opts.Target),
	)

	start := d.now()
	run := d.startRun(start)

	var wg sync.WaitGroup
	launched := 0
	for i := 1; i <= d.opts.Count; i++ {
		wg.Add(1)
		err := d.launcher.Launch(func() {
			defer wg.Done()
			d.unit(ctx, i)
		})
		if err != nil {
			wg.Done()
			d.failed.Add(1)
			d.log.Warn("failed to launch unit", slog.Int("seq", i), slog.Any("error", err))
			continue
		}
		launched++
	}

	d.state.Store(int32(StateAwaitingCompletion))

	var elapsed time.Duration
	if d.opts.Measure == MeasureDispatch {
		elapsed = d.now().Sub(start)
	}
	wg.Wait()
	if d.opts.Measure == MeasureCompletion {
		elapsed = d.now().Sub(start)
	}

	d.state.Store(int32(StateDone))

	report := &Report{
		Count:     d.opts.Count,
		Launched:  launched,
		Succeeded: int(d.succeeded.Load()),
		Failed:    int(d.failed.Load()),
		Elapsed:   elapsed,
		Measure:   d.opts.Measure,
		Mode:      d.launcher.Mode(),
	}

	d.log.Info(fmt.Sprintf("Time: %dms", elapsed.Milliseconds()),
		slog.Int64("elapsed_ms", elapsed.Milliseconds()),
		slog.String("measure", string(d.opts.Measure)),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
	)

	if run != nil {
		report.RunID = run.ID
		d.finishRun(ctx, run, report)
	}
	return report, nil
}

// unit performs one GET and blocks until it resolves. Failures, panics
// included, stay inside the unit.
func (d *Dispatcher) unit(ctx context.Context, seq int) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.log.Error("unit panicked", slog.Int("seq", seq), slog.Any("panic", r))
		}
	}()

	if _, err := httpclient.Get(ctx, d.client, d.opts.Target, nil, httpclient.Text); err != nil {
		d.failed.Add(1)
		d.log.Debug("request failed", slog.Int("seq", seq), slog.Any("error", err))
		return
	}
	d.succeeded.Add(1)
}

func (d *Dispatcher) startRun(start time.Time) *history.Run {
	if d.journal == nil {
		return nil
	}
	run := &history.Run{
		Target:    d.opts.Target,
		Count:     d.opts.Count,
		Mode:      string(d.launcher.Mode()),
		Measure:   string(d.opts.Measure),
		PoolName:  d.client.Config().Name,
		StartedAt: start,
		Status:    history.StatusRunning,
	}
	if err := d.journal.CreateRun(run); err != nil {
		// Journal failures never stop the run
		d.log.Warn("failed to record run", slog.Any("error", err))
		return nil
	}
	return run
}

func (d *Dispatcher) finishRun(ctx context.Context, run *history.Run, report *Report) {
	completed := d.now()
	run.CompletedAt = &completed
	run.Status = history.StatusCompleted
	if ctx.Err() != nil {
		run.Status = history.StatusCancelled
	}
	run.ElapsedMs = report.Elapsed.Milliseconds()
	run.Succeeded = report.Succeeded
	run.Failed = report.Failed

	if err := d.journal.FinishRun(run); err != nil {
		d.log.Warn("failed to update run record", slog.Int64("run_id", run.ID), slog.Any("error", err))
	}
}
