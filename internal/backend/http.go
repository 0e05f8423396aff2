// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"qms/cli/internal/httpclient"
)

// Endpoint paths on the QMS API.
const (
	pathRoot = "/"
	pathCAPA = "/api/capa/"
)

// HTTP implements API over the shared client.
type HTTP struct {
	client *httpclient.Client
}

// New creates a backend API implementation bound to the shared client.
func New(client *httpclient.Client) *HTTP {
	return &HTTP{client: client}
}

// Status calls GET / and returns the status message.
// No authentication required. Used to check connectivity to the backend.
func (h *HTTP) Status(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := h.client.DoJSON(ctx, http.MethodGet, pathRoot, nil, &out); err != nil {
		return "", err
	}
	if out.Message == "" {
		return "unknown", nil
	}
	return out.Message, nil
}

// ListCAPAs calls GET /api/capa/?skip=&limit=.
func (h *HTTP) ListCAPAs(ctx context.Context, skip, limit int) ([]CAPA, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var out []CAPA
	if err := h.client.DoJSON(ctx, http.MethodGet, pathCAPA+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCAPA calls GET /api/capa/{id}.
func (h *HTTP) GetCAPA(ctx context.Context, id int64) (*CAPADetails, error) {
	var out CAPADetails
	if err := h.client.DoJSON(ctx, http.MethodGet, fmt.Sprintf("%s%d", pathCAPA, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
