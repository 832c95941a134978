package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Reference table names the server ships.
const (
	TableCurrencies        = "currencies"
	TableDocumentTypes     = "document-types"
	TableCreditPurposes    = "credit-purposes"
	TableFloatingRateTypes = "floating-rate-types"
	TableRepaymentOrders   = "repayment-orders"
)

// ReferenceItem is one row of a code/name reference table. Sort is the
// display order the server suggests; zero means unordered.
type ReferenceItem struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Sort int    `json:"sort,omitempty"`
}

// ReferenceClient wraps the reference table endpoints. The tables are
// read-only dictionaries the console uses to populate pickers.
type ReferenceClient struct {
	client *Client
}

// Table returns every row of the named reference table. Unknown table
// names come back as [backoffice.ErrNotFound].
func (r *ReferenceClient) Table(ctx context.Context, name string) ([]ReferenceItem, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("client: reference client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("client: reference table name required")
	}
	req, err := r.client.newJSONRequest(ctx, http.MethodGet, "/reference/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.send(req)
	if err != nil {
		return nil, err
	}
	payload, err := decodeJSON[listEnvelope[ReferenceItem]](resp)
	if err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// Currencies lists the currency table.
func (r *ReferenceClient) Currencies(ctx context.Context) ([]ReferenceItem, error) {
	return r.Table(ctx, TableCurrencies)
}

// DocumentTypes lists the identity document type table.
func (r *ReferenceClient) DocumentTypes(ctx context.Context) ([]ReferenceItem, error) {
	return r.Table(ctx, TableDocumentTypes)
}

// CreditPurposes lists the credit purpose table.
func (r *ReferenceClient) CreditPurposes(ctx context.Context) ([]ReferenceItem, error) {
	return r.Table(ctx, TableCreditPurposes)
}

// FloatingRateTypes lists the floating rate type table.
func (r *ReferenceClient) FloatingRateTypes(ctx context.Context) ([]ReferenceItem, error) {
	return r.Table(ctx, TableFloatingRateTypes)
}

// RepaymentOrders lists the repayment order table.
func (r *ReferenceClient) RepaymentOrders(ctx context.Context) ([]ReferenceItem, error) {
	return r.Table(ctx, TableRepaymentOrders)
}
