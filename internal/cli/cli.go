// Package cli implements the studio command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/draftforge/studio/internal/auth"
	"github.com/draftforge/studio/internal/endpoint"
	"github.com/draftforge/studio/internal/lifecycle"
	"github.com/draftforge/studio/internal/notify"
	"github.com/draftforge/studio/internal/paths"
	"github.com/draftforge/studio/internal/provider"
	"github.com/draftforge/studio/internal/provider/devbox"
	"github.com/draftforge/studio/internal/provider/remote"
	"github.com/draftforge/studio/internal/registry"
	"github.com/draftforge/studio/internal/runtimeconfig"
	"github.com/draftforge/studio/internal/studioapi"
	"github.com/draftforge/studio/internal/studioclient"
	"github.com/draftforge/studio/internal/studioserver"
	"github.com/draftforge/studio/internal/tlsbootstrap"
	"github.com/draftforge/studio/internal/tlsconfig"
)

type runtimeContext struct {
	Stdout     io.Writer
	Config     runtimeconfig.Config
	ConfigPath string
}

type CLI struct {
	Serve   ServeCommand   `cmd:"" help:"Run the studio control-plane server"`
	Token   TokenCommand   `cmd:"" help:"Mint a bearer token for a principal"`
	Create  CreateCommand  `cmd:"" help:"Provision a new draft sandbox"`
	Connect ConnectCommand `cmd:"" help:"Wake a sandbox and print its session data"`
	Update  UpdateCommand  `cmd:"" help:"Update sandbox metadata"`
	Submit  SubmitCommand  `cmd:"" help:"Submit a sandbox for publication review"`
	Review  ReviewCommand  `cmd:"" help:"Record a review verdict (admin)"`
	Get     GetCommand     `cmd:"" help:"Show one sandbox"`
	List    ListCommand    `cmd:"" help:"List sandboxes"`
	TLS     TLSCommand     `cmd:"" help:"Manage TLS material for https endpoints"`

	Version kong.VersionFlag `help:"Print version and exit"`
}

// clientFlags are shared by every command that talks to a running
// control plane.
type clientFlags struct {
	Host     string `help:"Control-plane endpoint (unix://path, http://host:port, or https://host:port)"`
	Token    string `env:"STUDIO_TOKEN" help:"Bearer token (defaults to STUDIO_TOKEN)"`
	LogLevel string `help:"Client log level (debug|info|warn|error)"`
}

type ServeCommand struct {
	Listen   string `help:"Listen endpoint for control API (defaults to runtime endpoint)"`
	LogLevel string `help:"Server log level (debug|info|warn|error)"`
	Dev      bool   `help:"Use the in-process dev sandbox provider"`
	TLSCert  string `help:"Path to the server TLS certificate (https listen endpoints)"`
	TLSKey   string `help:"Path to the server TLS key (https listen endpoints)"`
}

type TokenCommand struct {
	Principal string `arg:"" help:"Principal id to mint a token for"`
	Admin     bool   `help:"Grant the admin role"`
	TTLHours  int64  `help:"Token validity in hours (defaults to config)"`
}

type CreateCommand struct {
	clientFlags
	Name string `help:"Display name for the new sandbox"`
}

type ConnectCommand struct {
	clientFlags
	ID string `arg:"" help:"Public sandbox identifier"`
}

type UpdateCommand struct {
	clientFlags
	ID           string `arg:"" help:"Public sandbox identifier"`
	Name         string `help:"New display name"`
	ComponentRef string `help:"Component back-reference"`
}

type SubmitCommand struct {
	clientFlags
	ID string `arg:"" help:"Public sandbox identifier"`
}

type ReviewCommand struct {
	clientFlags
	ID      string `arg:"" help:"Public sandbox identifier"`
	Verdict string `arg:"" help:"Review verdict (posted|featured|rejected)"`
}

type GetCommand struct {
	clientFlags
	ID string `arg:"" help:"Public sandbox identifier"`
}

type ListCommand struct {
	clientFlags
}

type TLSCommand struct {
	Init TLSInitCommand `cmd:"" help:"Generate a self-signed CA and server certificate"`
}

type TLSInitCommand struct {
	Host  []string `help:"DNS names or IP addresses for the server certificate"`
	Force bool     `help:"Overwrite existing TLS material"`
}

type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("command failed with exit code %d", e.code)
}

func (e exitCodeError) ExitCode() int {
	return e.code
}

type hasExitCode interface {
	ExitCode() int
}

func Run(args []string, version string) error {
	cfg, cfgPath, err := runtimeconfig.Load()
	if err != nil {
		return err
	}

	runtimeCtx := &runtimeContext{
		Stdout:     os.Stdout,
		Config:     cfg,
		ConfigPath: cfgPath,
	}

	cli := CLI{}
	parser, err := kong.New(
		&cli,
		kong.Name("studio"),
		kong.Description("Studio sandbox publication control plane"),
		kong.Vars{"version": version},
	)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return ctx.Run(runtimeCtx)
}

func ExitCode(err error) int {
	var codeErr hasExitCode
	if errors.As(err, &codeErr) {
		return codeErr.ExitCode()
	}
	return 1
}

func (s *ServeCommand) Run(ctx *runtimeContext) error {
	logger, err := newLogger(s.LogLevel, "server")
	if err != nil {
		return err
	}

	ep, err := endpoint.ResolveListen(firstNonEmpty(s.Listen, ctx.Config.Listen))
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(ctx.Config.Auth.Secret)
	if err != nil {
		return fmt.Errorf("configure auth (set auth.secret in %s or STUDIO_AUTH_SECRET): %w", ctx.ConfigPath, err)
	}

	sandboxProvider, err := buildProvider(s.Dev, ctx.Config.Provider)
	if err != nil {
		return err
	}

	store, err := registry.New(registry.Options{DBPath: ctx.Config.Registry.DBPath})
	if err != nil {
		return err
	}

	notifier := notify.New(notify.Options{
		URL:     ctx.Config.Notifier.URL,
		Timeout: time.Duration(ctx.Config.Notifier.TimeoutSeconds) * time.Second,
		Logger:  logger.With("subsystem", "notify"),
	})

	service := &lifecycle.Service{
		Registry: store,
		Provider: sandboxProvider,
		Notifier: notifier,
		Logger:   logger.With("subsystem", "service"),
		Defaults: lifecycle.Defaults{
			TemplateRef:        ctx.Config.Provider.Template,
			HibernationTimeout: time.Duration(ctx.Config.Provider.HibernationTimeoutSeconds) * time.Second,
			Visibility:         ctx.Config.Provider.Visibility,
		},
	}
	server := studioserver.New(service, verifier, logger.With("subsystem", "http"))

	logger.Info("using sandbox provider", "provider", sandboxProvider.Name())

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return studioserver.Serve(runCtx, ep, server.Handler(), logger, &studioserver.TLSOptions{
		CertPath: s.TLSCert,
		KeyPath:  s.TLSKey,
	})
}

func buildProvider(dev bool, cfg runtimeconfig.ProviderConfig) (provider.Provider, error) {
	if dev || strings.TrimSpace(cfg.Endpoint) == "" {
		return devbox.New(), nil
	}
	return remote.New(remote.Options{
		Endpoint:       cfg.Endpoint,
		APIKey:         cfg.APIKey,
		CreateTimeout:  time.Duration(cfg.CreateTimeoutSeconds) * time.Second,
		ConnectTimeout: time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
	})
}

func (t *TokenCommand) Run(ctx *runtimeContext) error {
	ttl := t.TTLHours
	if ttl <= 0 {
		ttl = ctx.Config.Auth.TokenTTLHours
	}

	token, err := auth.Mint(t.Principal, ctx.Config.Auth.Secret, t.Admin, time.Duration(ttl)*time.Hour)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Stdout, token)
	return err
}

func (c *CreateCommand) Run(ctx *runtimeContext) error {
	apiClient, err := c.newClient()
	if err != nil {
		return err
	}
	resp, err := apiClient.CreateSandbox(context.Background(), &studioapi.CreateSandboxRequest{Name: c.Name})
	if err != nil {
		return err
	}
	return printJSON(ctx.Stdout, resp)
}

func (c *ConnectCommand) Run(ctx *runtimeContext) error {
	apiClient, err := c.newClient()
	if err != nil {
		return err
	}
	resp, err := apiClient.ConnectSandbox(context.Background(), c.ID)
	if err != nil {
		return err
	}
	return printJSON(ctx.Stdout, resp)
}

func (u *UpdateCommand) Run(ctx *runtimeContext) error {
	patch := map[string]string{}
	if u.Name != "" {
		patch["name"] = u.Name
	}
	if u.ComponentRef != "" {
		patch["component_ref"] = u.ComponentRef
	}

	apiClient, err := u.newClient()
	if err != nil {
		return err
	}
	resp, err := apiClient.UpdateSandbox(context.Background(), u.ID, &studioapi.UpdateSandboxRequest{Patch: patch})
	if err != nil {
		return err
	}
	return printJSON(ctx.Stdout, resp)
}

func (s *SubmitCommand) Run(ctx *runtimeContext) error {
	apiClient, err := s.newClient()
	if err != nil {
		return err
	}
	resp, err := apiClient.SubmitSandbox(context.Background(), s.ID)
	if err != nil {
		return err
	}
	return printJSON(ctx.Stdout, resp)
}

func (r *ReviewCommand) Run(ctx *runtimeContext) error {
	apiClient, err := r.newClient()
	if err != nil {
		return err
	}
	resp, err := apiClient.ReviewSandbox(context.Background(), r.ID, &studioapi.ReviewSandboxRequest{Verdict: r.Verdict})
	if err != nil {
		return err
	}
	return printJSON(ctx.Stdout, resp)
}

func (g *GetCommand) Run(ctx *runtimeContext) error {
	apiClient, err := g.newClient()
	if err != nil {
		return err
	}
	resp, err := apiClient.GetSandbox(context.Background(), g.ID)
	if err != nil {
		return err
	}
	return printJSON(ctx.Stdout, resp)
}

func (l *ListCommand) Run(ctx *runtimeContext) error {
	apiClient, err := l.newClient()
	if err != nil {
		return err
	}
	resp, err := apiClient.ListSandboxes(context.Background())
	if err != nil {
		return err
	}
	return printJSON(ctx.Stdout, resp)
}

func (c *TLSInitCommand) Run(ctx *runtimeContext) error {
	dir, err := paths.TLSDir()
	if err != nil {
		return err
	}
	if err := tlsbootstrap.Init(dir, c.Host, c.Force); err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.Stdout, "TLS material written to %s\n", dir)
	return err
}

func (f *clientFlags) newClient() (*studioclient.Client, error) {
	ep, err := endpoint.Resolve(f.Host)
	if err != nil {
		return nil, err
	}
	return studioclient.New(ep, studioclient.WithToken(f.Token), studioclient.WithTLS(tlsconfig.Options{}))
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func newLogger(rawLevel, component string) (*log.Logger, error) {
	levelName := strings.TrimSpace(strings.ToLower(rawLevel))
	if levelName == "" {
		levelName = "info"
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", rawLevel, err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:     level,
		Formatter: log.TextFormatter,
	})
	return logger.With("component", component), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
