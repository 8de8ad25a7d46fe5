package client

import "github.com/draftforge/studio/internal/studioapi"

// Wire types re-exported so users of the public client never import
// internal packages.
type (
	Sandbox                = studioapi.Sandbox
	Session                = studioapi.Session
	CreateSandboxRequest   = studioapi.CreateSandboxRequest
	CreateSandboxResponse  = studioapi.CreateSandboxResponse
	ConnectSandboxResponse = studioapi.ConnectSandboxResponse
	UpdateSandboxRequest   = studioapi.UpdateSandboxRequest
	UpdateSandboxResponse  = studioapi.UpdateSandboxResponse
	SubmitSandboxResponse  = studioapi.SubmitSandboxResponse
	ReviewSandboxRequest   = studioapi.ReviewSandboxRequest
	ReviewSandboxResponse  = studioapi.ReviewSandboxResponse
	GetSandboxResponse     = studioapi.GetSandboxResponse
	ListSandboxesResponse  = studioapi.ListSandboxesResponse
)

// Sandbox publication statuses as they appear on the wire.
const (
	StatusActive   = "active"
	StatusOnReview = "on_review"
	StatusPosted   = "posted"
	StatusFeatured = "featured"
	StatusRejected = "rejected"
)
