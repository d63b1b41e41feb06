// Package plan turns an edit session's pending mutations into an
// ordered, phase-separated operation plan. The remote API has no
// partial-update verb, so an update is always expressed as a delete
// followed by a recreate of the same logical assignment.
package plan

import (
	"github.com/samber/lo"

	"github.com/mdmkit/assignsync/api"
	"github.com/mdmkit/assignsync/models"
)

// DeleteOp is one delete batch entry, addressed by application and
// assignment id. RecreateAfter tags deletes that are the first half of
// an update; the new fields ride along for the paired recreate.
type DeleteOp struct {
	Key       models.AssignmentKey
	AppName   string
	GroupName string
	Target    models.Target

	RecreateAfter bool
	NewIntent     models.Intent
	NewFilter     models.AssignmentFilter
}

// CreateOp is one entry of a per-application assign call. Recreation
// marks ops paired with a tagged delete: their failures are critical,
// because the original assignment is already gone. A non-empty Err
// means planning could not resolve a valid intent; the op is never
// submitted and is reported as a failure when its phase runs.
type CreateOp struct {
	LocalID   string
	AppID     string
	AppName   string
	GroupName string
	Target    models.Target
	Intent    models.Intent
	Filter    models.AssignmentFilter

	Recreation bool
	DeleteKey  models.AssignmentKey
	Err        string
}

// Wire encodes the op for the assign call's assignment array.
func (op CreateOp) Wire() api.WireAssignment {
	return api.WireAssignment{
		ID:     op.LocalID,
		Intent: string(op.Intent),
		Target: api.ToWireTarget(op.Target, op.Filter),
	}
}

// Plan is an immutable snapshot of the operations one save must
// perform. Deletes are independent batch entries; creates are grouped
// per owning application by the executor.
type Plan struct {
	Deletes []DeleteOp
	Creates []CreateOp
}

func (p Plan) Recreations() []CreateOp {
	return lo.Filter(p.Creates, func(op CreateOp, _ int) bool { return op.Recreation })
}

func (p Plan) NewCreates() []CreateOp {
	return lo.Filter(p.Creates, func(op CreateOp, _ int) bool { return !op.Recreation })
}

// CreatesByApp groups the given create ops per owning application,
// preserving plan order within each group.
func CreatesByApp(ops []CreateOp) map[string][]CreateOp {
	return lo.GroupBy(ops, func(op CreateOp) string { return op.AppID })
}

// ChunkDeletes splits the delete ops into batches of at most size.
func (p Plan) ChunkDeletes(size int) [][]DeleteOp {
	return lo.Chunk(p.Deletes, size)
}

// TotalOps is the precomputed progress denominator: every delete,
// recreation and creation counts exactly once.
func (p Plan) TotalOps() int {
	return len(p.Deletes) + len(p.Creates)
}

func (p Plan) Empty() bool {
	return p.TotalOps() == 0
}
