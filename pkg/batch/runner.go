package batch

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	errs "albumzip/pkg/errors"
	"albumzip/pkg/exporter"
	"albumzip/pkg/inventory"
	"albumzip/pkg/logger"
	"albumzip/pkg/ratelimit"

	"github.com/google/uuid"
)

// Exporter turns one work item into an outcome
type Exporter interface {
	Export(ctx context.Context, item inventory.WorkItem) exporter.Outcome
}

// Progress receives per-album updates for display
type Progress interface {
	StartAlbum(identifier string)
	CompleteAlbum(identifier, filename string)
	FailAlbum(identifier string, err error)
	Waiting(d time.Duration, reason string)
	Complete(aborted bool)
}

// Notifier announces the end of a batch
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}

// Options configures a Runner. Zero values disable the optional parts.
type Options struct {
	// Pause between two albums, never after the last one
	Pause time.Duration
	// Limiter gates every album start
	Limiter ratelimit.Limiter
	// Total is the number of items expected, used for progress and the summary
	Total    int
	Progress Progress
	Notifier Notifier
}

// Summary is the result of one batch run
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []exporter.Outcome
	Aborted   bool
	Elapsed   time.Duration
}

// FailedOutcomes returns the outcomes of albums that were not exported
func (s *Summary) FailedOutcomes() []exporter.Outcome {
	var failed []exporter.Outcome
	for _, o := range s.Outcomes {
		if !o.Succeeded {
			failed = append(failed, o)
		}
	}
	return failed
}

// Runner exports work items strictly one after another
type Runner struct {
	exporter Exporter
	session  io.Closer
	opts     Options
	logger   logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner. The runner owns session and closes it when Run
// returns, whatever the reason.
func NewRunner(exp Exporter, session io.Closer, opts Options, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	return &Runner{
		exporter: exp,
		session:  session,
		opts:     opts,
		logger:   log.WithField("component", "batch"),
		sleep:    sleep,
	}
}

// Run processes items in order. Failed albums are recorded and the batch moves
// on; only a fatal outcome or a cancelled ctx stops it early, in which case the
// summary is marked aborted and the cause returned.
func (r *Runner) Run(ctx context.Context, items iter.Seq[inventory.WorkItem]) (summary *Summary, err error) {
	start := time.Now()
	runID := uuid.NewString()
	log := r.logger.WithField("run_id", runID)
	summary = &Summary{RunID: runID, Total: r.opts.Total}

	logger.LogComponentStart(log, "batch", map[string]interface{}{
		"total": r.opts.Total,
		"pause": r.opts.Pause,
	})

	defer func() {
		if rec := recover(); rec != nil {
			summary.Aborted = true
			err = errs.New(errs.ErrorTypeUnexpected, "batch", fmt.Sprintf("panic: %v", rec), nil)
			log.WithError(err).Error("Batch crashed")
		}
		if closeErr := r.session.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close browser session")
		}
		r.finish(log, summary, start, err)
	}()

	first := true
	for item := range items {
		if ctxErr := ctx.Err(); ctxErr != nil {
			summary.Aborted = true
			return summary, ctxErr
		}

		if !first && r.opts.Pause > 0 {
			r.opts.Progress.Waiting(r.opts.Pause, "pause between albums")
			if sleepErr := r.sleep(ctx, r.opts.Pause); sleepErr != nil {
				summary.Aborted = true
				return summary, sleepErr
			}
		}
		first = false

		if !r.opts.Limiter.Allow() {
			log.Warn("Hourly album limit reached, waiting for the next window")
			r.opts.Progress.Waiting(r.opts.Limiter.Delay(), "hourly album limit reached")
			if waitErr := r.opts.Limiter.Wait(ctx); waitErr != nil {
				summary.Aborted = true
				return summary, waitErr
			}
		}

		out := r.export(ctx, item)
		summary.Outcomes = append(summary.Outcomes, out)
		if out.Succeeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		logger.LogBatchProgress(log, len(summary.Outcomes), max(summary.Total, len(summary.Outcomes)))

		if errs.IsFatal(out.Err) {
			summary.Aborted = true
			return summary, out.Err
		}
	}

	return summary, nil
}

func (r *Runner) export(ctx context.Context, item inventory.WorkItem) exporter.Outcome {
	r.opts.Progress.StartAlbum(item.Identifier)

	out := r.exporter.Export(ctx, item)

	l := r.logger.WithField("row", item.Row)
	switch {
	case out.Succeeded:
		r.opts.Progress.CompleteAlbum(item.Identifier, out.Filename)
		logger.LogAlbum(l, item.Identifier, out.Filename, true, out.Duration, nil)
	case errs.TypeOf(out.Err) == errs.ErrorTypeDownloadTimeout:
		r.opts.Progress.FailAlbum(item.Identifier, out.Err)
		logger.LogAlbum(l.WithError(out.Err), item.Identifier, "", false, out.Duration, nil)
	default:
		r.opts.Progress.FailAlbum(item.Identifier, out.Err)
		logger.LogAlbum(l, item.Identifier, "", false, out.Duration, out.Err)
	}
	return out
}

func (r *Runner) finish(log logger.Logger, summary *Summary, start time.Time, err error) {
	summary.Elapsed = time.Since(start)
	if summary.Total < len(summary.Outcomes) {
		summary.Total = len(summary.Outcomes)
	}

	r.opts.Progress.Complete(summary.Aborted)

	fields := map[string]interface{}{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"aborted":   summary.Aborted,
		"elapsed":   summary.Elapsed,
	}
	if err != nil {
		log.WithError(err).ErrorWithFields("Batch aborted", fields)
	} else {
		log.InfoWithFields("Batch finished", fields)
	}

	if r.opts.Notifier == nil {
		return
	}
	if summary.Aborted {
		r.opts.Notifier.SendError("Batch aborted",
			fmt.Sprintf("%d of %d albums exported before: %v", summary.Succeeded, summary.Total, err))
		return
	}
	msg := fmt.Sprintf("%d of %d albums exported", summary.Succeeded, summary.Total)
	if summary.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", summary.Failed)
	}
	r.opts.Notifier.SendSuccess("Batch complete", msg)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopProgress struct{}

func (nopProgress) StartAlbum(string)             {}
func (nopProgress) CompleteAlbum(string, string)  {}
func (nopProgress) FailAlbum(string, error)       {}
func (nopProgress) Waiting(time.Duration, string) {}
func (nopProgress) Complete(bool)                 {}
