package api

import (
	"github.com/mdmkit/assignsync/models"
)

const (
	odataGroupTarget      = "#microsoft.graph.groupAssignmentTarget"
	odataAllDevicesTarget = "#microsoft.graph.allDevicesAssignmentTarget"
	odataAllUsersTarget   = "#microsoft.graph.allLicensedUsersAssignmentTarget"
)

// WireTarget is the OData-discriminated target body of one assignment.
type WireTarget struct {
	ODataType  string `json:"@odata.type"`
	GroupID    string `json:"groupId,omitempty"`
	FilterID   string `json:"deviceAndAppManagementAssignmentFilterId,omitempty"`
	FilterMode string `json:"deviceAndAppManagementAssignmentFilterType,omitempty"`
}

// WireAssignment is one entry of an assign call's mobileAppAssignments
// array.
type WireAssignment struct {
	ID     string     `json:"id,omitempty"`
	Intent string     `json:"intent"`
	Target WireTarget `json:"target"`
}

// AssignRequest is the body of the per-application assign call.
type AssignRequest struct {
	Assignments []WireAssignment `json:"mobileAppAssignments"`
}

func ToWireTarget(t models.Target, filter models.AssignmentFilter) WireTarget {
	wt := WireTarget{}
	switch t.Kind {
	case models.TargetKindAllDevices:
		wt.ODataType = odataAllDevicesTarget
	case models.TargetKindAllUsers:
		wt.ODataType = odataAllUsersTarget
	default:
		wt.ODataType = odataGroupTarget
		wt.GroupID = t.GroupID
	}

	if f := filter.Normalized(); !f.IsZero() {
		wt.FilterID = f.ID
		wt.FilterMode = string(f.Mode)
	}
	return wt
}

// FromWireTarget is the read-side inverse of ToWireTarget. Filter
// fields stay on the wire target; the caller lifts them into the
// assignment's filter.
func FromWireTarget(wt WireTarget) models.Target {
	switch wt.ODataType {
	case odataAllDevicesTarget:
		return models.Target{Kind: models.TargetKindAllDevices}
	case odataAllUsersTarget:
		return models.Target{Kind: models.TargetKindAllUsers}
	default:
		return models.Target{Kind: models.TargetKindGroup, GroupID: wt.GroupID}
	}
}

// ListEnvelope is the paginated list response wrapper used by the
// remote service.
type ListEnvelope[T any] struct {
	Count    int    `json:"@odata.count,omitempty"`
	NextLink string `json:"@odata.nextLink,omitempty"`
	Context  string `json:"@odata.context,omitempty"`
	Value    []T    `json:"value"`
}
