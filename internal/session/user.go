// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"bytes"
	"encoding/json"
	"errors"
)

// User is the server-defined user record, kept as opaque JSON. The zero value
// means no user.
type User json.RawMessage

// IsZero reports whether no user record is present (absent or JSON null).
func (u User) IsZero() bool {
	b := bytes.TrimSpace(u)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// MarshalJSON encodes the zero User as null.
func (u User) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("null"), nil
	}
	return u, nil
}

// UnmarshalJSON keeps a copy of the raw value.
func (u *User) UnmarshalJSON(data []byte) error {
	if u == nil {
		return errors.New("session.User: UnmarshalJSON on nil pointer")
	}
	*u = append((*u)[0:0], data...)
	return nil
}

// String returns the raw JSON, or "null" for the zero User.
func (u User) String() string {
	b, _ := u.MarshalJSON()
	return string(b)
}

// Decode unmarshals the record into v.
func (u User) Decode(v any) error {
	if u.IsZero() {
		return errors.New("no user record")
	}
	return json.Unmarshal(u, v)
}

// Profile is the subset of the backend's user record the CLI displays.
// Unknown fields are ignored; missing fields stay zero.
type Profile struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// Profile decodes the record as a Profile.
func (u User) Profile() (Profile, error) {
	var p Profile
	err := u.Decode(&p)
	return p, err
}

// DisplayName picks the most readable identifier available.
func (p Profile) DisplayName() string {
	switch {
	case p.FullName != "":
		return p.FullName
	case p.Username != "":
		return p.Username
	default:
		return p.Email
	}
}
