// Package studioapi defines the JSON wire shapes of the studio control
// API. Success responses always carry "success": true; failures carry a
// single human-readable "error" with no further structure, so callers
// cannot infer more than the status code communicates.
package studioapi

import "time"

type Sandbox struct {
	SandboxID    string    `json:"sandbox_id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name,omitempty"`
	ComponentRef string    `json:"component_ref,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Session struct {
	EditorURL string    `json:"editor_url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateSandboxRequest struct {
	Name string `json:"name,omitempty"`
}

type CreateSandboxResponse struct {
	Success   bool    `json:"success"`
	SandboxID string  `json:"sandbox_id"`
	Sandbox   Sandbox `json:"sandbox"`
}

type ConnectSandboxResponse struct {
	Success bool    `json:"success"`
	Session Session `json:"session"`
	Sandbox Sandbox `json:"sandbox"`
}

type UpdateSandboxRequest struct {
	Patch map[string]string `json:"patch"`
}

type UpdateSandboxResponse struct {
	Success bool    `json:"success"`
	Sandbox Sandbox `json:"sandbox"`
}

type SubmitSandboxResponse struct {
	Success bool    `json:"success"`
	Sandbox Sandbox `json:"sandbox"`
}

type ReviewSandboxRequest struct {
	Verdict string `json:"verdict"`
}

type ReviewSandboxResponse struct {
	Success bool    `json:"success"`
	Sandbox Sandbox `json:"sandbox"`
}

type GetSandboxResponse struct {
	Success bool    `json:"success"`
	Sandbox Sandbox `json:"sandbox"`
}

type ListSandboxesResponse struct {
	Success   bool      `json:"success"`
	Sandboxes []Sandbox `json:"sandboxes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
