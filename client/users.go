package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a console operator account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserDraft carries the writable fields for user create and update.
// Username is create-only; the server rejects renames.
type UserDraft struct {
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Password string `json:"password,omitempty"`
}

// UsersListParams are the server-side filters for the users screen.
type UsersListParams struct {
	// Query matches username, full name, and email.
	Query   string
	Role    string
	Blocked *bool
	Page    int
	PerPage int
}

func (p UsersListParams) values() url.Values {
	v := url.Values{}
	if q := strings.TrimSpace(p.Query); q != "" {
		v.Set("q", q)
	}
	if p.Role != "" {
		v.Set("role", p.Role)
	}
	if p.Blocked != nil {
		v.Set("blocked", strconv.FormatBool(*p.Blocked))
	}
	setPaging(v, p.Page, p.PerPage)
	return v
}

// UsersClient wraps the operator account endpoints.
type UsersClient struct {
	client *Client
}

// List returns one page of operator accounts, filtered server-side.
func (u *UsersClient) List(ctx context.Context, params UsersListParams) (Page[User], error) {
	if u == nil || u.client == nil {
		return Page[User]{}, errors.New("client: users client not initialized")
	}
	path := "/users"
	if encoded := params.values().Encode(); encoded != "" {
		path += "?" + encoded
	}
	req, err := u.client.newJSONRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Page[User]{}, err
	}
	resp, err := u.client.send(req)
	if err != nil {
		return Page[User]{}, err
	}
	return decodeJSON[Page[User]](resp)
}

// Get returns a single operator account.
func (u *UsersClient) Get(ctx context.Context, id uuid.UUID) (User, error) {
	if u == nil || u.client == nil {
		return User{}, errors.New("client: users client not initialized")
	}
	if id == uuid.Nil {
		return User{}, errors.New("client: user id required")
	}
	req, err := u.client.newJSONRequest(ctx, http.MethodGet, "/users/"+id.String(), nil)
	if err != nil {
		return User{}, err
	}
	resp, err := u.client.send(req)
	if err != nil {
		return User{}, err
	}
	return decodeJSON[User](resp)
}

// Create registers a new operator account.
func (u *UsersClient) Create(ctx context.Context, draft UserDraft) (User, error) {
	if u == nil || u.client == nil {
		return User{}, errors.New("client: users client not initialized")
	}
	if strings.TrimSpace(draft.Username) == "" {
		return User{}, errors.New("client: username required")
	}
	req, err := u.client.newJSONRequest(ctx, http.MethodPost, "/users", draft)
	if err != nil {
		return User{}, err
	}
	resp, err := u.client.send(req)
	if err != nil {
		return User{}, err
	}
	return decodeJSON[User](resp)
}

// Update edits an existing operator account.
func (u *UsersClient) Update(ctx context.Context, id uuid.UUID, draft UserDraft) (User, error) {
	if u == nil || u.client == nil {
		return User{}, errors.New("client: users client not initialized")
	}
	if id == uuid.Nil {
		return User{}, errors.New("client: user id required")
	}
	req, err := u.client.newJSONRequest(ctx, http.MethodPut, "/users/"+id.String(), draft)
	if err != nil {
		return User{}, err
	}
	resp, err := u.client.send(req)
	if err != nil {
		return User{}, err
	}
	return decodeJSON[User](resp)
}

// SetBlocked blocks or unblocks an operator account. Blocking takes effect
// on the server immediately; the operator's next request fails and their
// console degrades to the login screen through the usual refresh path.
func (u *UsersClient) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (User, error) {
	if u == nil || u.client == nil {
		return User{}, errors.New("client: users client not initialized")
	}
	if id == uuid.Nil {
		return User{}, errors.New("client: user id required")
	}
	payload := struct {
		Blocked bool `json:"blocked"`
	}{Blocked: blocked}
	req, err := u.client.newJSONRequest(ctx, http.MethodPut, "/users/"+id.String()+"/blocked", payload)
	if err != nil {
		return User{}, err
	}
	resp, err := u.client.send(req)
	if err != nil {
		return User{}, err
	}
	return decodeJSON[User](resp)
}
