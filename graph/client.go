// Package graph implements the remote transport of the reconciliation
// engine against an OData-flavored device-management API: batched
// deletes through $batch, per-application assign calls, and the
// paginated read side that feeds the edit session.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	netHTTP "net/http"
	"time"

	"github.com/flanksource/commons/http"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/mdmkit/assignsync/api"
	"github.com/mdmkit/assignsync/models"
)

// Client owns retry and rate-limit back-off; callers never see a 429.
type Client struct {
	*http.Client

	maxBatchSize int
}

func NewClient(config Config) *Client {
	client := Client{
		maxBatchSize: config.MaxBatchSize,
		Client: http.NewClient().
			Header("Authorization", "Bearer "+config.Token).
			InsecureSkipVerify(config.InsecureSkipVerify).
			BaseURL(config.BaseURL).
			Trace(http.TraceConfig{
				QueryParam: true,
			}),
	}
	if client.maxBatchSize <= 0 {
		client.maxBatchSize = 20
	}
	for _, opt := range config.Options {
		opt(client.Client)
	}
	return &client
}

// MaxBatchSize is the server-side limit the executor must respect.
func (t *Client) MaxBatchSize() int {
	return t.maxBatchSize
}

type batchPayload struct {
	Requests []api.BatchRequest `json:"requests"`
}

type batchEnvelope struct {
	Responses []api.BatchResponse `json:"responses"`
}

// SubmitBatch submits the requests as one $batch call and returns one
// response per request. Entry statuses are returned as-is; only the
// envelope call itself is retried on throttling.
func (t *Client) SubmitBatch(ctx context.Context, requests []api.BatchRequest) ([]api.BatchResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if len(requests) > t.maxBatchSize {
		return nil, api.Errorf(api.EINVALID, "batch of %d exceeds the limit of %d", len(requests), t.maxBatchSize)
	}

	var envelope batchEnvelope
	err := t.withBackoff(ctx, func(ctx context.Context) error {
		req := t.R(ctx)
		if err := req.Body(batchPayload{Requests: requests}); err != nil {
			return fmt.Errorf("error setting body: %w", err)
		}

		resp, err := req.Do(netHTTP.MethodPost, "$batch")
		if err != nil {
			return retry.RetryableError(fmt.Errorf("error submitting batch: %w", err))
		}
		defer resp.Body.Close()

		if err := t.checkResponse(resp); err != nil {
			return err
		}

		return resp.Into(&envelope)
	})
	if err != nil {
		return nil, err
	}

	return envelope.Responses, nil
}

// Post sends one bulk body to the endpoint, e.g. an application's
// assign call.
func (t *Client) Post(ctx context.Context, endpoint string, body any) error {
	return t.withBackoff(ctx, func(ctx context.Context) error {
		req := t.R(ctx)
		if err := req.Body(body); err != nil {
			return fmt.Errorf("error setting body: %w", err)
		}

		resp, err := req.Do(netHTTP.MethodPost, endpoint)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("error posting to %s: %w", endpoint, err))
		}
		defer resp.Body.Close()

		return t.checkResponse(resp)
	})
}

// checkResponse folds a non-2xx response into an error, keeping the
// remote error body when it decodes. Throttling and transient server
// errors are marked retryable for the back-off loop.
func (t *Client) checkResponse(resp *http.Response) error {
	if resp.IsOK() {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)

	var err error
	var httpErr api.HTTPError
	if json.Unmarshal(respBody, &httpErr) == nil && httpErr.Err != "" {
		err = &httpErr
	} else {
		err = api.Errorf(api.CodeFromStatus(resp.StatusCode),
			"remote returned status[%d]: %s", resp.StatusCode, parseResponse(string(respBody)))
	}

	if resp.StatusCode == netHTTP.StatusTooManyRequests || resp.StatusCode == netHTTP.StatusServiceUnavailable {
		return retry.RetryableError(err)
	}
	return err
}

func (t *Client) withBackoff(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithJitter(time.Second, retry.WithMaxRetries(3, retry.NewExponential(time.Second)))
	return retry.Do(ctx, backoff, fn)
}

// listPages follows the service's nextLink pagination until the list is
// exhausted.
func listPages[T any](ctx context.Context, t *Client, path string) ([]T, error) {
	var out []T

	for path != "" {
		resp, err := t.R(ctx).Get(path)
		if err != nil {
			return nil, fmt.Errorf("error listing %s: %w", path, err)
		}

		var page api.ListEnvelope[T]
		if err := func() error {
			defer resp.Body.Close()
			if err := t.checkResponse(resp); err != nil {
				return err
			}
			return resp.Into(&page)
		}(); err != nil {
			return nil, err
		}

		out = append(out, page.Value...)
		path = page.NextLink
	}

	return out, nil
}

type wireAssignmentRecord struct {
	ID     string         `json:"id"`
	Intent string         `json:"intent"`
	Target api.WireTarget `json:"target"`
}

// ListAssignments fetches every assignment of the application,
// following pagination. Group display names are not part of the wire
// record; the caller enriches them from the group directory.
func (t *Client) ListAssignments(ctx context.Context, appID string) ([]models.Assignment, error) {
	records, err := listPages[wireAssignmentRecord](ctx, t, fmt.Sprintf("deviceAppManagement/mobileApps/%s/assignments", appID))
	if err != nil {
		return nil, oops.With("app", appID).Wrapf(err, "failed to list assignments")
	}

	assignments := make([]models.Assignment, 0, len(records))
	for _, r := range records {
		assignments = append(assignments, models.Assignment{
			ID:     r.ID,
			AppID:  appID,
			Intent: models.Intent(r.Intent),
			Target: api.FromWireTarget(r.Target),
			Filter: models.AssignmentFilter{
				ID:   r.Target.FilterID,
				Mode: models.FilterMode(r.Target.FilterMode),
			}.Normalized(),
		})
	}
	return assignments, nil
}

type wireGroupRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	MemberCount int    `json:"memberCount"`
}

// ListGroups fetches the known target groups.
func (t *Client) ListGroups(ctx context.Context) ([]models.TargetGroup, error) {
	records, err := listPages[wireGroupRecord](ctx, t, "groups")
	if err != nil {
		return nil, oops.Wrapf(err, "failed to list groups")
	}

	groups := make([]models.TargetGroup, 0, len(records))
	for _, r := range records {
		groups = append(groups, models.TargetGroup{
			ID:          r.ID,
			DisplayName: r.DisplayName,
			Kind:        models.TargetKindGroup,
			MemberCount: r.MemberCount,
		})
	}
	return groups, nil
}

// ListFilters fetches assignment filter metadata, used for display
// only.
func (t *Client) ListFilters(ctx context.Context) ([]models.FilterInfo, error) {
	filters, err := listPages[models.FilterInfo](ctx, t, "deviceManagement/assignmentFilters")
	if err != nil {
		return nil, oops.Wrapf(err, "failed to list assignment filters")
	}
	return filters, nil
}

func parseResponse(body string) string {
	if len(body) > 200 {
		body = body[0:200]
	}
	return body
}
