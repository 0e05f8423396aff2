// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides the QMS API operations the CLI performs once logged in.
// Every call goes through the shared httpclient.Client, so requests carry the
// session's bearer header and a 401 on any of them ends the session.
package backend

import (
	"context"
	"time"
)

// API defines backend operations the CLI depends on.
// Implementations may call the real REST endpoints or provide mocks for tests.
type API interface {
	// Status calls the unauthenticated root endpoint and returns its message.
	Status(ctx context.Context) (string, error)
	// ListCAPAs returns a page of CAPA records.
	ListCAPAs(ctx context.Context, skip, limit int) ([]CAPA, error)
	// GetCAPA returns one CAPA record with its assignee.
	GetCAPA(ctx context.Context, id int64) (*CAPADetails, error)
}

// CAPA is a corrective and preventive action record.
type CAPA struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Type             string     `json:"capa_type"`
	Status           string     `json:"status"`
	RootCause        string     `json:"root_cause,omitempty"`
	ImmediateAction  string     `json:"immediate_action,omitempty"`
	CorrectiveAction string     `json:"corrective_action,omitempty"`
	PreventiveAction string     `json:"preventive_action,omitempty"`
	AssigneeID       int64      `json:"assignee_id"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	ClosedDate       *time.Time `json:"closed_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CAPADetails is a CAPA with its expanded assignee.
type CAPADetails struct {
	CAPA
	Assignee struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	} `json:"assignee"`
}
