// Package assignsync reconciles a locally edited set of application
// assignments against a remote device-management service: it diffs the
// desired state against the fetched baseline, detects cross-application
// conflicts before committing, executes the resulting operations in
// bounded batches and reports partial failure per (application, group)
// pair.
package assignsync

import (
	"context"

	"github.com/mdmkit/assignsync/executor"
	"github.com/mdmkit/assignsync/models"
	"github.com/mdmkit/assignsync/plan"
	"github.com/mdmkit/assignsync/session"
)

// Save plans and executes the session's pending mutations in one shot.
// The report is always returned; after any save the caller should
// refetch the applications from the remote source of truth, since the
// local baseline cannot be trusted to reflect partial success.
func Save(ctx context.Context, transport executor.Transport, s *session.Session, opts ...executor.Option) *models.SaveReport {
	p := plan.Build(s)
	return executor.New(transport, opts...).Execute(ctx, p)
}
