package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Program is a credit program: the amount, term, and rate envelope an
// operator can attach to an application. Amounts are in minor units of the
// program currency; rates are basis points.
type Program struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	Currency       string     `json:"currency"`
	MinAmount      int64      `json:"min_amount"`
	MaxAmount      int64      `json:"max_amount"`
	MinTermMonths  int        `json:"min_term_months"`
	MaxTermMonths  int        `json:"max_term_months"`
	RateBps        int        `json:"rate_bps"`
	FloatingRate   string     `json:"floating_rate_type,omitempty"`
	RepaymentOrder string     `json:"repayment_order,omitempty"`
	Purpose        string     `json:"credit_purpose,omitempty"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Archived reports whether the program is closed to new applications.
func (p Program) Archived() bool {
	return p.ArchivedAt != nil
}

// ProgramDraft carries the writable fields for program create and update.
// Reference-table codes (currency, floating rate type, repayment order,
// credit purpose) are validated server-side against the current tables.
type ProgramDraft struct {
	Code           string `json:"code,omitempty"`
	Name           string `json:"name,omitempty"`
	Currency       string `json:"currency,omitempty"`
	MinAmount      int64  `json:"min_amount,omitempty"`
	MaxAmount      int64  `json:"max_amount,omitempty"`
	MinTermMonths  int    `json:"min_term_months,omitempty"`
	MaxTermMonths  int    `json:"max_term_months,omitempty"`
	RateBps        int    `json:"rate_bps,omitempty"`
	FloatingRate   string `json:"floating_rate_type,omitempty"`
	RepaymentOrder string `json:"repayment_order,omitempty"`
	Purpose        string `json:"credit_purpose,omitempty"`
}

// ProgramsListParams are the server-side filters for the programs screen.
type ProgramsListParams struct {
	// Query matches code and name.
	Query           string
	Currency        string
	IncludeArchived bool
	Page            int
	PerPage         int
}

func (p ProgramsListParams) values() url.Values {
	v := url.Values{}
	if q := strings.TrimSpace(p.Query); q != "" {
		v.Set("q", q)
	}
	if p.Currency != "" {
		v.Set("currency", p.Currency)
	}
	if p.IncludeArchived {
		v.Set("include_archived", "true")
	}
	setPaging(v, p.Page, p.PerPage)
	return v
}

// ProgramsClient wraps the credit program endpoints.
type ProgramsClient struct {
	client *Client
}

// List returns one page of credit programs, filtered server-side. Archived
// programs are excluded unless IncludeArchived is set.
func (p *ProgramsClient) List(ctx context.Context, params ProgramsListParams) (Page[Program], error) {
	if p == nil || p.client == nil {
		return Page[Program]{}, errors.New("client: programs client not initialized")
	}
	path := "/programs"
	if encoded := params.values().Encode(); encoded != "" {
		path += "?" + encoded
	}
	req, err := p.client.newJSONRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Page[Program]{}, err
	}
	resp, err := p.client.send(req)
	if err != nil {
		return Page[Program]{}, err
	}
	return decodeJSON[Page[Program]](resp)
}

// Get returns a single credit program.
func (p *ProgramsClient) Get(ctx context.Context, id uuid.UUID) (Program, error) {
	if p == nil || p.client == nil {
		return Program{}, errors.New("client: programs client not initialized")
	}
	if id == uuid.Nil {
		return Program{}, errors.New("client: program id required")
	}
	req, err := p.client.newJSONRequest(ctx, http.MethodGet, "/programs/"+id.String(), nil)
	if err != nil {
		return Program{}, err
	}
	resp, err := p.client.send(req)
	if err != nil {
		return Program{}, err
	}
	return decodeJSON[Program](resp)
}

// Create registers a new credit program.
func (p *ProgramsClient) Create(ctx context.Context, draft ProgramDraft) (Program, error) {
	if p == nil || p.client == nil {
		return Program{}, errors.New("client: programs client not initialized")
	}
	if strings.TrimSpace(draft.Code) == "" {
		return Program{}, errors.New("client: program code required")
	}
	req, err := p.client.newJSONRequest(ctx, http.MethodPost, "/programs", draft)
	if err != nil {
		return Program{}, err
	}
	resp, err := p.client.send(req)
	if err != nil {
		return Program{}, err
	}
	return decodeJSON[Program](resp)
}

// Update edits an existing credit program.
func (p *ProgramsClient) Update(ctx context.Context, id uuid.UUID, draft ProgramDraft) (Program, error) {
	if p == nil || p.client == nil {
		return Program{}, errors.New("client: programs client not initialized")
	}
	if id == uuid.Nil {
		return Program{}, errors.New("client: program id required")
	}
	req, err := p.client.newJSONRequest(ctx, http.MethodPut, "/programs/"+id.String(), draft)
	if err != nil {
		return Program{}, err
	}
	resp, err := p.client.send(req)
	if err != nil {
		return Program{}, err
	}
	return decodeJSON[Program](resp)
}

// Archive closes a program to new applications. Existing agreements keep
// running; archiving is not a delete.
func (p *ProgramsClient) Archive(ctx context.Context, id uuid.UUID) (Program, error) {
	if p == nil || p.client == nil {
		return Program{}, errors.New("client: programs client not initialized")
	}
	if id == uuid.Nil {
		return Program{}, errors.New("client: program id required")
	}
	req, err := p.client.newJSONRequest(ctx, http.MethodPost, "/programs/"+id.String()+"/archive", nil)
	if err != nil {
		return Program{}, err
	}
	resp, err := p.client.send(req)
	if err != nil {
		return Program{}, err
	}
	return decodeJSON[Program](resp)
}
