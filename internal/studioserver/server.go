// Package studioserver exposes the lifecycle service over the studio
// control API. It owns authentication, JSON translation, and the
// taxonomy-to-status mapping; lifecycle semantics stay in the service.
package studioserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/draftforge/studio/internal/auth"
	"github.com/draftforge/studio/internal/endpoint"
	"github.com/draftforge/studio/internal/lifecycle"
	"github.com/draftforge/studio/internal/registry"
	"github.com/draftforge/studio/internal/shortid"
	"github.com/draftforge/studio/internal/studioapi"
	"github.com/draftforge/studio/internal/tlsconfig"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// TLSOptions holds explicit TLS paths for the server.
type TLSOptions struct {
	CertPath string
	KeyPath  string
	CAPath   string
}

type Server struct {
	service  *lifecycle.Service
	verifier *auth.Verifier
	logger   *log.Logger
}

func New(service *lifecycle.Service, verifier *auth.Verifier, logger *log.Logger) *Server {
	return &Server{service: service, verifier: verifier, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/sandboxes", s.authenticated(s.handleCreate))
	mux.HandleFunc("GET /v1/sandboxes", s.authenticated(s.handleList))
	mux.HandleFunc("GET /v1/sandboxes/{id}", s.authenticated(s.handleGet))
	mux.HandleFunc("PATCH /v1/sandboxes/{id}", s.authenticated(s.handleUpdate))
	mux.HandleFunc("POST /v1/sandboxes/{id}/connect", s.authenticated(s.handleConnect))
	mux.HandleFunc("POST /v1/sandboxes/{id}/submit", s.authenticated(s.handleSubmit))
	mux.HandleFunc("POST /v1/sandboxes/{id}/review", s.authenticated(s.handleReview))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return h2c.NewHandler(mux, &http2.Server{})
}

type authenticatedHandler func(http.ResponseWriter, *http.Request, auth.Principal)

// authenticated rejects requests without a valid bearer token before any
// other processing happens.
func (s *Server) authenticated(next authenticatedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, lifecycle.ErrUnauthorized)
			return
		}
		principal, err := s.verifier.Principal(strings.TrimSpace(token))
		if err != nil {
			s.writeError(w, lifecycle.ErrUnauthorized)
			return
		}
		next(w, r, principal)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req studioapi.CreateSandboxRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, fmt.Errorf("%w: malformed request body", lifecycle.ErrInvalidIdentifier))
			return
		}
	}

	token, record, err := s.service.Create(r.Context(), principal, strings.TrimSpace(req.Name))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, studioapi.CreateSandboxResponse{
		Success:   true,
		SandboxID: token,
		Sandbox:   apiSandbox(record),
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	session, record, err := s.service.Connect(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, studioapi.ConnectSandboxResponse{
		Success: true,
		Session: studioapi.Session{
			EditorURL: session.EditorURL,
			Token:     session.Token,
			ExpiresAt: session.ExpiresAt,
		},
		Sandbox: apiSandbox(record),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req studioapi.UpdateSandboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed request body", lifecycle.ErrInvalidIdentifier))
		return
	}

	record, err := s.service.Update(r.Context(), principal, r.PathValue("id"), req.Patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, studioapi.UpdateSandboxResponse{Success: true, Sandbox: apiSandbox(record)})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	record, err := s.service.SubmitForReview(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, studioapi.SubmitSandboxResponse{Success: true, Sandbox: apiSandbox(record)})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req studioapi.ReviewSandboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed request body", lifecycle.ErrInvalidIdentifier))
		return
	}

	record, err := s.service.Review(r.Context(), principal, r.PathValue("id"), registry.Status(strings.TrimSpace(req.Verdict)))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, studioapi.ReviewSandboxResponse{Success: true, Sandbox: apiSandbox(record)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	record, err := s.service.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, studioapi.GetSandboxResponse{Success: true, Sandbox: apiSandbox(record)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	records, err := s.service.List(r.Context(), principal)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := studioapi.ListSandboxesResponse{Success: true, Sandboxes: make([]studioapi.Sandbox, 0, len(records))}
	for _, record := range records {
		resp.Sandboxes = append(resp.Sandboxes, apiSandbox(record))
	}
	s.writeJSON(w, resp)
}

func apiSandbox(record registry.Record) studioapi.Sandbox {
	return studioapi.Sandbox{
		SandboxID:    shortid.Encode(record.ID),
		OwnerID:      record.OwnerID,
		Name:         record.Name,
		ComponentRef: record.ComponentRef,
		Status:       string(record.Status),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForError(err))
	_ = json.NewEncoder(w).Encode(studioapi.ErrorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrInvalidIdentifier),
		errors.Is(err, lifecycle.ErrNoOp),
		errors.Is(err, lifecycle.ErrInvalidPatch),
		errors.Is(err, lifecycle.ErrInvalidVerdict):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Serve(ctx context.Context, ep endpoint.Endpoint, handler http.Handler, logger *log.Logger, tlsOpts *TLSOptions) error {
	listener, err := listen(ep, tlsOpts)
	if err != nil {
		return err
	}
	defer listener.Close()
	if logger != nil {
		logger.Info("serving studio control API", "endpoint", ep.Address, "scheme", ep.Scheme, "base_url", ep.BaseURL)
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if ep.Scheme == "https" {
		if err := http2.ConfigureServer(httpServer, nil); err != nil {
			return fmt.Errorf("configure HTTP/2 for TLS: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		if ep.Scheme == "unix" {
			_ = os.Remove(ep.Address)
		}
		if logger != nil {
			logger.Info("control API shutdown complete", "endpoint", ep.Address)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		if logger != nil {
			logger.Error("control API serve failed", "error", err)
		}
		return err
	}
}

func listen(ep endpoint.Endpoint, tlsOpts *TLSOptions) (net.Listener, error) {
	if ep.Scheme == "unix" {
		if err := os.MkdirAll(filepath.Dir(ep.Address), 0o755); err != nil {
			return nil, err
		}
		if err := os.Remove(ep.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		listener, err := net.Listen("unix", ep.Address)
		if err != nil {
			return nil, err
		}
		if err := os.Chmod(ep.Address, 0o600); err != nil {
			_ = listener.Close()
			return nil, err
		}
		return listener, nil
	}

	if ep.Scheme == "https" {
		var opts tlsconfig.Options
		if tlsOpts != nil {
			opts = tlsconfig.Options{
				CertPath: tlsOpts.CertPath,
				KeyPath:  tlsOpts.KeyPath,
				CAPath:   tlsOpts.CAPath,
			}
		}
		tlsCfg, err := tlsconfig.ResolveServer(opts)
		if err != nil {
			return nil, fmt.Errorf("resolve server TLS config: %w", err)
		}
		if tlsCfg == nil {
			return nil, errors.New("https listen endpoint requires TLS certificates (provide --tls-cert/--tls-key)")
		}
		addr := ep.Address
		for _, prefix := range []string{"https://", "http://"} {
			addr = strings.TrimPrefix(addr, prefix)
		}
		listener, err := tls.Listen("tcp", addr, tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("start TLS listener for %q: %w", addr, err)
		}
		return listener, nil
	}
	if ep.Scheme == "http" {
		addr := strings.TrimPrefix(ep.Address, "http://")
		return net.Listen("tcp", addr)
	}

	return nil, fmt.Errorf("unsupported endpoint scheme %q", ep.Scheme)
}
