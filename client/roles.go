package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Role is a named capability set. The console roles screen edits these;
// the capability package evaluates them.
type Role struct {
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Capabilities []string  `json:"capabilities"`
	BuiltIn      bool      `json:"built_in"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleDraft carries the writable fields for role create and update.
type RoleDraft struct {
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities"`
}

// RolesClient wraps the role endpoints.
type RolesClient struct {
	client *Client
}

// List returns every role. Roles are few; the endpoint does not page.
func (r *RolesClient) List(ctx context.Context) ([]Role, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("client: roles client not initialized")
	}
	req, err := r.client.newJSONRequest(ctx, http.MethodGet, "/roles", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.send(req)
	if err != nil {
		return nil, err
	}
	payload, err := decodeJSON[listEnvelope[Role]](resp)
	if err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// Get returns a single role by name.
func (r *RolesClient) Get(ctx context.Context, name string) (Role, error) {
	if r == nil || r.client == nil {
		return Role{}, errors.New("client: roles client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("client: role name required")
	}
	req, err := r.client.newJSONRequest(ctx, http.MethodGet, "/roles/"+url.PathEscape(name), nil)
	if err != nil {
		return Role{}, err
	}
	resp, err := r.client.send(req)
	if err != nil {
		return Role{}, err
	}
	return decodeJSON[Role](resp)
}

// Create registers a new role.
func (r *RolesClient) Create(ctx context.Context, name string, draft RoleDraft) (Role, error) {
	if r == nil || r.client == nil {
		return Role{}, errors.New("client: roles client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("client: role name required")
	}
	payload := struct {
		Name string `json:"name"`
		RoleDraft
	}{Name: name, RoleDraft: draft}
	req, err := r.client.newJSONRequest(ctx, http.MethodPost, "/roles", payload)
	if err != nil {
		return Role{}, err
	}
	resp, err := r.client.send(req)
	if err != nil {
		return Role{}, err
	}
	return decodeJSON[Role](resp)
}

// Update replaces the description and capability set of a role.
func (r *RolesClient) Update(ctx context.Context, name string, draft RoleDraft) (Role, error) {
	if r == nil || r.client == nil {
		return Role{}, errors.New("client: roles client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("client: role name required")
	}
	req, err := r.client.newJSONRequest(ctx, http.MethodPut, "/roles/"+url.PathEscape(name), draft)
	if err != nil {
		return Role{}, err
	}
	resp, err := r.client.send(req)
	if err != nil {
		return Role{}, err
	}
	return decodeJSON[Role](resp)
}

// Delete removes a role. The server rejects deleting a built-in role or a
// role still assigned to operators.
func (r *RolesClient) Delete(ctx context.Context, name string) error {
	if r == nil || r.client == nil {
		return errors.New("client: roles client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("client: role name required")
	}
	req, err := r.client.newJSONRequest(ctx, http.MethodDelete, "/roles/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	resp, err := r.client.send(req)
	if err != nil {
		return err
	}
	drainClose(resp)
	return nil
}
