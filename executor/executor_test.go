package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/onsi/gomega"
	"github.com/samber/lo"

	"github.com/mdmkit/assignsync/api"
	"github.com/mdmkit/assignsync/models"
	"github.com/mdmkit/assignsync/plan"
)

// fakeTransport records every submission and answers with configurable
// outcomes. Batch responses are returned in reverse order to exercise
// correlation by request id.
type fakeTransport struct {
	mu      sync.Mutex
	batches [][]api.BatchRequest
	posts   map[string]api.AssignRequest

	statusFor func(api.BatchRequest) int
	batchErr  error
	postErr   error
	onBatch   func()
}

func (f *fakeTransport) SubmitBatch(_ context.Context, requests []api.BatchRequest) ([]api.BatchResponse, error) {
	f.mu.Lock()
	f.batches = append(f.batches, requests)
	f.mu.Unlock()

	if f.onBatch != nil {
		f.onBatch()
	}
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	responses := make([]api.BatchResponse, 0, len(requests))
	for i := len(requests) - 1; i >= 0; i-- {
		status := 204
		if f.statusFor != nil {
			status = f.statusFor(requests[i])
		}
		responses = append(responses, api.BatchResponse{ID: requests[i].ID, Status: status})
	}
	return responses, nil
}

func (f *fakeTransport) Post(_ context.Context, endpoint string, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.posts == nil {
		f.posts = map[string]api.AssignRequest{}
	}
	f.posts[endpoint] = body.(api.AssignRequest)
	return f.postErr
}

func (f *fakeTransport) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func deleteOp(appID, assignmentID, appName, groupName string) plan.DeleteOp {
	return plan.DeleteOp{
		Key:       models.AssignmentKey{AppID: appID, AssignmentID: assignmentID},
		AppName:   appName,
		GroupName: groupName,
		Target:    models.Target{Kind: models.TargetKindGroup, GroupID: "g-" + groupName, GroupName: groupName},
	}
}

// updatePair returns the tagged delete and its paired recreation.
func updatePair(appID, assignmentID, appName, groupName string, intent models.Intent) (plan.DeleteOp, plan.CreateOp) {
	del := deleteOp(appID, assignmentID, appName, groupName)
	del.RecreateAfter = true
	del.NewIntent = intent

	create := plan.CreateOp{
		LocalID:    "local-" + assignmentID,
		AppID:      appID,
		AppName:    appName,
		GroupName:  groupName,
		Target:     del.Target,
		Intent:     intent,
		Recreation: true,
		DeleteKey:  del.Key,
	}
	return del, create
}

func newCreate(appID, appName, groupName string, intent models.Intent) plan.CreateOp {
	return plan.CreateOp{
		LocalID:   "local-" + appID + "-" + groupName,
		AppID:     appID,
		AppName:   appName,
		GroupName: groupName,
		Target:    models.Target{Kind: models.TargetKindGroup, GroupID: "g-" + groupName, GroupName: groupName},
		Intent:    intent,
	}
}

func failuresIn(r *models.SaveReport, phase models.Phase) []models.OperationFailure {
	return lo.Filter(r.Failures, func(f models.OperationFailure, _ int) bool { return f.Phase == phase })
}

func TestExecuteEmptyPlan(t *testing.T) {
	g := gomega.NewWithT(t)

	transport := &fakeTransport{}
	e := New(transport)

	report := e.Execute(context.Background(), plan.Plan{})
	g.Expect(report).NotTo(gomega.BeNil())
	g.Expect(report.HasFailures()).To(gomega.BeFalse())
	g.Expect(e.State()).To(gomega.Equal(StateDone))
	g.Expect(transport.batchCount()).To(gomega.BeZero())
	g.Expect(transport.posts).To(gomega.BeEmpty())
}

func TestExecuteHappyPath(t *testing.T) {
	g := gomega.NewWithT(t)

	del, recreate := updatePair("app-1", "a-2", "App One", "Marketing", models.IntentUninstall)
	p := plan.Plan{
		Deletes: []plan.DeleteOp{
			deleteOp("app-1", "a-1", "App One", "Finance"),
			del,
		},
		Creates: []plan.CreateOp{
			recreate,
			newCreate("app-1", "App One", "Interns", models.IntentAvailable),
			newCreate("app-2", "App Two", "Interns", models.IntentAvailable),
		},
	}

	var updates []Progress
	transport := &fakeTransport{}
	e := New(transport, WithProgress(func(p Progress) { updates = append(updates, p) }))

	report := e.Execute(context.Background(), p)

	g.Expect(report.HasFailures()).To(gomega.BeFalse())
	g.Expect(report.CompletedCount()).To(gomega.Equal(5))
	g.Expect(report.Completed[models.PhaseDelete]).To(gomega.Equal(2))
	g.Expect(report.Completed[models.PhaseRecreate]).To(gomega.Equal(1))
	g.Expect(report.Completed[models.PhaseCreate]).To(gomega.Equal(2))
	g.Expect(e.State()).To(gomega.Equal(StateDone))

	// both deletes fit one batch
	g.Expect(transport.batchCount()).To(gomega.Equal(1))
	g.Expect(transport.batches[0]).To(gomega.HaveLen(2))
	g.Expect(transport.batches[0][0].Method).To(gomega.Equal("DELETE"))

	// one assign call per application per phase, carrying the whole array
	g.Expect(transport.posts).To(gomega.HaveLen(2))
	g.Expect(transport.posts["deviceAppManagement/mobileApps/app-2/assign"].Assignments).To(gomega.HaveLen(1))

	// progress is monotone and lands exactly on the precomputed total
	g.Expect(updates).To(gomega.HaveLen(5))
	for i, u := range updates {
		g.Expect(u.Total).To(gomega.Equal(5))
		g.Expect(u.DoneCount()).To(gomega.Equal(i + 1))
	}
	g.Expect(e.Progress().DoneCount()).To(gomega.Equal(e.Progress().Total))
}

func TestExecuteTreats404AsDeleted(t *testing.T) {
	g := gomega.NewWithT(t)

	del, recreate := updatePair("app-1", "a-1", "App One", "Finance", models.IntentRequired)
	p := plan.Plan{Deletes: []plan.DeleteOp{del}, Creates: []plan.CreateOp{recreate}}

	transport := &fakeTransport{
		statusFor: func(api.BatchRequest) int { return 404 },
	}
	report := New(transport).Execute(context.Background(), p)

	g.Expect(report.HasFailures()).To(gomega.BeFalse())
	g.Expect(report.Completed[models.PhaseDelete]).To(gomega.Equal(1))
	// the recreation went out because the delete counted as resolved
	g.Expect(report.Completed[models.PhaseRecreate]).To(gomega.Equal(1))
	g.Expect(transport.posts).To(gomega.HaveLen(1))
}

func TestExecuteSkipsRecreationWhenDeleteFails(t *testing.T) {
	g := gomega.NewWithT(t)

	del, recreate := updatePair("app-1", "a-2", "App One", "Marketing", models.IntentUninstall)
	p := plan.Plan{
		Deletes: []plan.DeleteOp{deleteOp("app-1", "a-1", "App One", "Finance"), del},
		Creates: []plan.CreateOp{recreate},
	}

	transport := &fakeTransport{
		statusFor: func(req api.BatchRequest) int {
			if req.URL == "/deviceAppManagement/mobileApps/app-1/assignments/a-2" {
				return 500
			}
			return 204
		},
	}
	report := New(transport).Execute(context.Background(), p)

	g.Expect(report.Completed[models.PhaseDelete]).To(gomega.Equal(1))

	deleteFailures := failuresIn(report, models.PhaseDelete)
	g.Expect(deleteFailures).To(gomega.HaveLen(1))
	g.Expect(deleteFailures[0].Error).To(gomega.ContainSubstring("500"))
	g.Expect(deleteFailures[0].WasDeleted).To(gomega.BeFalse())

	recreateFailures := failuresIn(report, models.PhaseRecreate)
	g.Expect(recreateFailures).To(gomega.HaveLen(1))
	g.Expect(recreateFailures[0].Error).To(gomega.Equal("not attempted: the paired delete failed"))
	g.Expect(recreateFailures[0].WasDeleted).To(gomega.BeFalse())

	// the original assignment is still intact, so nothing is critical
	g.Expect(report.CriticalCount()).To(gomega.BeZero())
	g.Expect(transport.posts).To(gomega.BeEmpty())
}

func TestExecuteRecreateFailureIsCritical(t *testing.T) {
	g := gomega.NewWithT(t)

	delA, recreateA := updatePair("app-1", "a-1", "App One", "Finance", models.IntentRequired)
	delB, recreateB := updatePair("app-2", "a-3", "App Two", "Sales", models.IntentAvailable)
	p := plan.Plan{
		Deletes: []plan.DeleteOp{delA, delB},
		Creates: []plan.CreateOp{recreateA, recreateB},
	}

	transport := &fakeTransport{postErr: errors.New("connection reset")}
	report := New(transport).Execute(context.Background(), p)

	g.Expect(report.Completed[models.PhaseDelete]).To(gomega.Equal(2))

	failures := failuresIn(report, models.PhaseRecreate)
	g.Expect(failures).To(gomega.HaveLen(2))
	for _, f := range failures {
		g.Expect(f.WasDeleted).To(gomega.BeTrue())
		g.Expect(f.Error).To(gomega.Equal("connection reset"))
	}
	g.Expect(report.CriticalCount()).To(gomega.Equal(2))
	g.Expect(report.String()).To(gomega.ContainSubstring("check the remote console manually"))
}

func TestExecuteBatchTransportError(t *testing.T) {
	g := gomega.NewWithT(t)

	p := plan.Plan{Deletes: []plan.DeleteOp{
		deleteOp("app-1", "a-1", "App One", "Finance"),
		deleteOp("app-1", "a-2", "App One", "Marketing"),
	}}

	transport := &fakeTransport{batchErr: errors.New("network is unreachable")}
	report := New(transport).Execute(context.Background(), p)

	failures := failuresIn(report, models.PhaseDelete)
	g.Expect(failures).To(gomega.HaveLen(2))
	for _, f := range failures {
		g.Expect(f.Error).To(gomega.Equal("network is unreachable"))
		g.Expect(f.WasDeleted).To(gomega.BeFalse())
	}
	g.Expect(report.CriticalCount()).To(gomega.BeZero())
}

func TestExecutePlanValidationErrors(t *testing.T) {
	g := gomega.NewWithT(t)

	del, recreate := updatePair("app-1", "a-1", "App One", "Finance", "")
	recreate.Err = "no valid intent for category=webLink target=allDevices"

	invalid := newCreate("app-2", "App Two", "Interns", "")
	invalid.Err = "no intent is valid for all 2 application categories on target allDevices"
	valid := newCreate("app-2", "App Two", "Sales", models.IntentRequired)

	p := plan.Plan{
		Deletes: []plan.DeleteOp{del},
		Creates: []plan.CreateOp{recreate, invalid, valid},
	}

	transport := &fakeTransport{}
	report := New(transport).Execute(context.Background(), p)

	// the delete went through, so the unresolvable recreation left the
	// assignment missing remotely
	recreateFailures := failuresIn(report, models.PhaseRecreate)
	g.Expect(recreateFailures).To(gomega.HaveLen(1))
	g.Expect(recreateFailures[0].WasDeleted).To(gomega.BeTrue())

	createFailures := failuresIn(report, models.PhaseCreate)
	g.Expect(createFailures).To(gomega.HaveLen(1))
	g.Expect(createFailures[0].WasDeleted).To(gomega.BeFalse())

	// the invalid op did not suppress the rest of the application's array
	g.Expect(report.Completed[models.PhaseCreate]).To(gomega.Equal(1))
	g.Expect(transport.posts["deviceAppManagement/mobileApps/app-2/assign"].Assignments).To(gomega.HaveLen(1))
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	g := gomega.NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := plan.Plan{
		Deletes: []plan.DeleteOp{deleteOp("app-1", "a-1", "App One", "Finance")},
		Creates: []plan.CreateOp{newCreate("app-1", "App One", "Interns", models.IntentAvailable)},
	}

	transport := &fakeTransport{}
	e := New(transport)
	report := e.Execute(ctx, p)

	g.Expect(transport.batchCount()).To(gomega.BeZero())
	g.Expect(transport.posts).To(gomega.BeEmpty())
	g.Expect(report.FailedCount()).To(gomega.Equal(2))
	for _, f := range report.Failures {
		g.Expect(f.Error).To(gomega.ContainSubstring("save cancelled"))
		g.Expect(f.WasDeleted).To(gomega.BeFalse())
	}
	g.Expect(e.State()).To(gomega.Equal(StateDone))
	g.Expect(e.Progress().DoneCount()).To(gomega.Equal(e.Progress().Total))
}

func TestExecuteCancelledAfterDeletePhase(t *testing.T) {
	g := gomega.NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())

	del, recreate := updatePair("app-1", "a-1", "App One", "Finance", models.IntentRequired)
	p := plan.Plan{Deletes: []plan.DeleteOp{del}, Creates: []plan.CreateOp{recreate}}

	// the in-flight batch resolves, then the save is cancelled before the
	// recreate phase submits anything
	transport := &fakeTransport{onBatch: cancel}
	report := New(transport).Execute(ctx, p)

	g.Expect(report.Completed[models.PhaseDelete]).To(gomega.Equal(1))
	g.Expect(transport.posts).To(gomega.BeEmpty())

	failures := failuresIn(report, models.PhaseRecreate)
	g.Expect(failures).To(gomega.HaveLen(1))
	g.Expect(failures[0].Error).To(gomega.ContainSubstring("save cancelled"))
	// the delete already went through: the assignment is gone remotely
	g.Expect(failures[0].WasDeleted).To(gomega.BeTrue())
	g.Expect(report.CriticalCount()).To(gomega.Equal(1))
}

func TestExecuteChunksDeletesByMaxBatchSize(t *testing.T) {
	g := gomega.NewWithT(t)

	var p plan.Plan
	for _, id := range []string{"a-1", "a-2", "a-3", "a-4", "a-5"} {
		p.Deletes = append(p.Deletes, deleteOp("app-1", id, "App One", "Finance"))
	}

	transport := &fakeTransport{}
	report := New(transport, WithMaxBatchSize(2), WithFanOut(1)).Execute(context.Background(), p)

	g.Expect(report.Completed[models.PhaseDelete]).To(gomega.Equal(5))
	g.Expect(transport.batchCount()).To(gomega.Equal(3))
	for _, batch := range transport.batches {
		g.Expect(len(batch)).To(gomega.BeNumerically("<=", 2))
	}
}
