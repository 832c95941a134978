package client

import (
	"net/url"
	"strconv"
)

// Page is one window of a server-side listing.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

type listEnvelope[T any] struct {
	Items []T `json:"items"`
}

func setPaging(v url.Values, page, perPage int) {
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		v.Set("per_page", strconv.Itoa(perPage))
	}
}
