package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Decision status values as the server reports them.
const (
	DecisionApproved     = "approved"
	DecisionDeclined     = "declined"
	DecisionManualReview = "manual-review"
)

// Decision is the recorded outcome of a processed credit application. The
// console reads these; it never creates or edits them.
type Decision struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	ProgramID     uuid.UUID `json:"program_id"`
	Applicant     string    `json:"applicant"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	DecidedBy     string    `json:"decided_by"`
	DecidedAt     time.Time `json:"decided_at"`
	Note          string    `json:"note,omitempty"`
}

// DecisionsListParams are the server-side filters for the decisions screen.
type DecisionsListParams struct {
	Status    string
	ProgramID uuid.UUID
	From      time.Time
	To        time.Time
	Page      int
	PerPage   int
}

func (p DecisionsListParams) values() url.Values {
	v := url.Values{}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.ProgramID != uuid.Nil {
		v.Set("program_id", p.ProgramID.String())
	}
	if !p.From.IsZero() {
		v.Set("from", p.From.UTC().Format(time.RFC3339))
	}
	if !p.To.IsZero() {
		v.Set("to", p.To.UTC().Format(time.RFC3339))
	}
	setPaging(v, p.Page, p.PerPage)
	return v
}

// DecisionsClient wraps the read-only decision endpoints.
type DecisionsClient struct {
	client *Client
}

// List returns one page of decisions, filtered server-side.
func (d *DecisionsClient) List(ctx context.Context, params DecisionsListParams) (Page[Decision], error) {
	if d == nil || d.client == nil {
		return Page[Decision]{}, errors.New("client: decisions client not initialized")
	}
	path := "/decisions"
	if encoded := params.values().Encode(); encoded != "" {
		path += "?" + encoded
	}
	req, err := d.client.newJSONRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Page[Decision]{}, err
	}
	resp, err := d.client.send(req)
	if err != nil {
		return Page[Decision]{}, err
	}
	return decodeJSON[Page[Decision]](resp)
}

// Get returns a single decision.
func (d *DecisionsClient) Get(ctx context.Context, id uuid.UUID) (Decision, error) {
	if d == nil || d.client == nil {
		return Decision{}, errors.New("client: decisions client not initialized")
	}
	if id == uuid.Nil {
		return Decision{}, errors.New("client: decision id required")
	}
	req, err := d.client.newJSONRequest(ctx, http.MethodGet, "/decisions/"+id.String(), nil)
	if err != nil {
		return Decision{}, err
	}
	resp, err := d.client.send(req)
	if err != nil {
		return Decision{}, err
	}
	return decodeJSON[Decision](resp)
}
