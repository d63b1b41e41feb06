// Package executor runs a reconciliation plan against the remote
// service in rate-limit-respecting batches and folds every outcome
// into a save report. The executor never returns an error: partial
// failure is the normal case and is always attributable to a specific
// (application, group) pair.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/google/uuid"

	"github.com/mdmkit/assignsync/api"
	"github.com/mdmkit/assignsync/models"
	"github.com/mdmkit/assignsync/plan"

	"golang.org/x/sync/errgroup"
)

// Transport is the external batch transport. It owns auth, pagination,
// retries and rate-limit back-off; the executor only supplies request
// bodies and respects the batch size limit.
type Transport interface {
	// SubmitBatch submits up to maxBatchSize requests and returns one
	// response per request. Response order is not guaranteed to match
	// input order; outcomes are correlated by request id.
	SubmitBatch(ctx context.Context, requests []api.BatchRequest) ([]api.BatchResponse, error)

	// Post sends one bulk body to the given endpoint.
	Post(ctx context.Context, endpoint string, body any) error
}

// State is the executor's position in a save. Transitions are forward
// only; Done is reached regardless of failures.
type State string

const (
	StateIdle       State = "idle"
	StateDeleting   State = "deleting"
	StateRecreating State = "recreating"
	StateCreating   State = "creating"
	StateDone       State = "done"
)

// Progress is a monotonically increasing counter pair against a
// precomputed total. No operation is counted twice across phases.
type Progress struct {
	Completed int
	Failed    int
	Total     int
}

func (p Progress) DoneCount() int {
	return p.Completed + p.Failed
}

type Option func(*Executor)

// WithMaxBatchSize overrides the server-side batch size limit.
func WithMaxBatchSize(n int) Option {
	return func(e *Executor) { e.maxBatchSize = n }
}

// WithFanOut bounds how many batch submissions of one phase are in
// flight concurrently.
func WithFanOut(n int) Option {
	return func(e *Executor) { e.fanOut = n }
}

// WithProgress registers a callback invoked after every folded outcome.
func WithProgress(fn func(Progress)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

const (
	DefaultMaxBatchSize = 20
	defaultFanOut       = 3
)

// Executor executes one save at a time. It takes the plan as an
// immutable snapshot: session mutations during a save do not alter an
// in-flight plan.
type Executor struct {
	transport    Transport
	maxBatchSize int
	fanOut       int
	onProgress   func(Progress)

	mu       sync.Mutex
	state    State
	progress Progress
	report   *models.SaveReport

	// tagged deletes that resolved successfully; only their paired
	// recreations are submitted.
	deleted map[models.AssignmentKey]bool
}

func New(transport Transport, opts ...Option) *Executor {
	e := &Executor{
		transport:    transport,
		maxBatchSize: DefaultMaxBatchSize,
		fanOut:       defaultFanOut,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Execute runs the plan to completion and returns the aggregate report.
// Transport failures are folded into the report, never returned. A
// cancelled context stops submissions between chunks; every tagged
// delete that already succeeded without its recreation is then surfaced
// as a critical inconsistency.
func (e *Executor) Execute(ctx context.Context, p plan.Plan) *models.SaveReport {
	e.mu.Lock()
	e.state = StateIdle
	e.report = models.NewSaveReport()
	e.progress = Progress{Total: p.TotalOps()}
	e.deleted = map[models.AssignmentKey]bool{}
	report := e.report
	e.mu.Unlock()

	if p.Empty() {
		e.setState(StateDone)
		return report
	}

	e.setState(StateDeleting)
	e.runDeletePhase(ctx, p)

	e.setState(StateRecreating)
	e.runCreatePhase(ctx, p.Recreations(), models.PhaseRecreate)

	e.setState(StateCreating)
	e.runCreatePhase(ctx, p.NewCreates(), models.PhaseCreate)

	e.setState(StateDone)
	logger.WithValues("completed", report.CompletedCount(), "failed", report.FailedCount(),
		"critical", report.CriticalCount()).Debugf("save finished")
	return report
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	if s != StateIdle {
		logger.Debugf("executor state: %s", s)
	}
}

// runDeletePhase submits the delete ops in chunks of at most
// maxBatchSize, up to fanOut chunks in flight at once. Outcomes are
// folded back under the executor mutex.
func (e *Executor) runDeletePhase(ctx context.Context, p plan.Plan) {
	chunks := p.ChunkDeletes(e.maxBatchSize)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(e.fanOut)

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			e.foldCancelledDeletes(chunk, ctx.Err())
			continue
		}

		chunk := chunk
		g.Go(func() error {
			e.submitDeleteChunk(gctx, chunk)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Executor) submitDeleteChunk(ctx context.Context, chunk []plan.DeleteOp) {
	requests := make([]api.BatchRequest, 0, len(chunk))
	byID := make(map[string]plan.DeleteOp, len(chunk))
	for _, op := range chunk {
		id := uuid.NewString()
		byID[id] = op
		requests = append(requests, api.DeleteAssignmentRequest(id, op.Key))
	}

	start := time.Now()
	responses, err := e.transport.SubmitBatch(ctx, requests)
	batchDuration.WithLabelValues(string(models.PhaseDelete)).Observe(time.Since(start).Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		for _, op := range chunk {
			e.failDeleteLocked(op, err.Error())
		}
		return
	}

	outcomes := make(map[string]api.BatchResponse, len(responses))
	for _, res := range responses {
		outcomes[res.ID] = res
	}

	for id, op := range byID {
		res, ok := outcomes[id]
		switch {
		case !ok:
			e.failDeleteLocked(op, "no response for batch entry")
		case res.StatusOK():
			// 404 means already absent, which is the state the delete
			// wanted.
			e.deleted[op.Key] = true
			e.recordSuccessLocked(models.PhaseDelete)
		default:
			e.failDeleteLocked(op, api.Errorf(api.CodeFromStatus(res.Status), "remote returned status %d", res.Status).Error())
		}
	}
}

func (e *Executor) foldCancelledDeletes(chunk []plan.DeleteOp, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range chunk {
		e.failDeleteLocked(op, "save cancelled: "+cause.Error())
	}
}

func (e *Executor) failDeleteLocked(op plan.DeleteOp, msg string) {
	e.recordFailureLocked(models.OperationFailure{
		ApplicationName: op.AppName,
		GroupName:       op.GroupName,
		Phase:           models.PhaseDelete,
		Error:           msg,
		// The delete did not go through: the original assignment is
		// presumably still intact.
		WasDeleted: false,
	})
}

// runCreatePhase groups the ops per application and sends at most one
// assign call per application: the array is the unit the server
// expects, so it is not chunked further. Applications are independent
// resources, so per-app calls may interleave up to the fan-out bound.
func (e *Executor) runCreatePhase(ctx context.Context, ops []plan.CreateOp, phase models.Phase) {
	if len(ops) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(e.fanOut)

	for appID, appOps := range plan.CreatesByApp(ops) {
		if ctx.Err() != nil {
			e.foldCancelledCreates(appOps, phase, ctx.Err())
			continue
		}

		appID, appOps := appID, appOps
		g.Go(func() error {
			e.submitAssign(gctx, appID, appOps, phase)
			return nil
		})
	}
	_ = g.Wait()
}

// submitAssign sends one application's create ops. Ops whose tagged
// delete failed are skipped without a call; ops that failed validation
// during planning are reported without being submitted but do not
// remove the rest of the array.
func (e *Executor) submitAssign(ctx context.Context, appID string, ops []plan.CreateOp, phase models.Phase) {
	var body api.AssignRequest
	var sendable []plan.CreateOp

	e.mu.Lock()
	for _, op := range ops {
		if op.Recreation && !e.deleted[op.DeleteKey] {
			// The original assignment still exists; nothing to recreate.
			e.recordFailureLocked(models.OperationFailure{
				ApplicationName: op.AppName,
				GroupName:       op.GroupName,
				Phase:           phase,
				Error:           "not attempted: the paired delete failed",
				WasDeleted:      false,
			})
			continue
		}

		if op.Err != "" {
			e.recordFailureLocked(models.OperationFailure{
				ApplicationName: op.AppName,
				GroupName:       op.GroupName,
				Phase:           phase,
				Error:           op.Err,
				WasDeleted:      op.Recreation,
			})
			continue
		}

		sendable = append(sendable, op)
		body.Assignments = append(body.Assignments, op.Wire())
	}
	e.mu.Unlock()

	if len(sendable) == 0 {
		return
	}

	start := time.Now()
	err := e.transport.Post(ctx, api.AssignEndpoint(appID), body)
	batchDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		// One call carries the whole array: every op in it failed.
		for _, op := range sendable {
			e.recordFailureLocked(models.OperationFailure{
				ApplicationName: op.AppName,
				GroupName:       op.GroupName,
				Phase:           phase,
				Error:           err.Error(),
				WasDeleted:      op.Recreation,
			})
		}
		return
	}

	for range sendable {
		e.recordSuccessLocked(phase)
	}
}

func (e *Executor) foldCancelledCreates(ops []plan.CreateOp, phase models.Phase, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range ops {
		skipped := op.Recreation && !e.deleted[op.DeleteKey]
		e.recordFailureLocked(models.OperationFailure{
			ApplicationName: op.AppName,
			GroupName:       op.GroupName,
			Phase:           phase,
			Error:           "save cancelled: " + cause.Error(),
			// A recreation whose delete already went through leaves the
			// assignment missing remotely: cancellation does not soften
			// that into an ordinary failure.
			WasDeleted: op.Recreation && !skipped,
		})
	}
}

func (e *Executor) recordSuccessLocked(phase models.Phase) {
	e.report.RecordSuccess(phase)
	e.progress.Completed++
	e.notifyLocked()
	opsTotal.WithLabelValues(string(phase), "success").Inc()
}

func (e *Executor) recordFailureLocked(f models.OperationFailure) {
	e.report.RecordFailure(f)
	e.progress.Failed++
	e.notifyLocked()
	opsTotal.WithLabelValues(string(f.Phase), "failure").Inc()
}

func (e *Executor) notifyLocked() {
	if e.onProgress != nil {
		e.onProgress(e.progress)
	}
}
