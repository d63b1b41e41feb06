package api

import (
	"fmt"
	"net/http"

	"github.com/mdmkit/assignsync/models"
)

// BatchRequest is one typed entry in a $batch submission. ID is a
// locally generated correlation id: the service does not guarantee
// response ordering, so outcomes must be matched back by id.
type BatchRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

// BatchResponse is the outcome of one batch entry.
type BatchResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// StatusOK reports whether the entry's status should be treated as
// success. 404 on a delete means "already absent" and is idempotently
// treated as deleted.
func (r BatchResponse) StatusOK() bool {
	return (r.Status >= 200 && r.Status < 300) || r.Status == http.StatusNotFound
}

func DeleteAssignmentRequest(id string, key models.AssignmentKey) BatchRequest {
	return BatchRequest{
		ID:     id,
		Method: http.MethodDelete,
		URL:    fmt.Sprintf("/deviceAppManagement/mobileApps/%s/assignments/%s", key.AppID, key.AssignmentID),
	}
}

// AssignEndpoint is the per-application bulk create endpoint. The
// service replaces/adds the whole array in one call, so create
// operations are grouped per owning application rather than chunked.
func AssignEndpoint(appID string) string {
	return fmt.Sprintf("deviceAppManagement/mobileApps/%s/assign", appID)
}
