package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

func newParserForTest(t *testing.T, c *CLI) *kong.Kong {
	t.Helper()

	parser, err := kong.New(
		c,
		kong.Name("studio"),
		kong.Description("Studio sandbox publication control plane"),
		kong.Vars{"version": "test"},
	)
	if err != nil {
		t.Fatalf("create parser: %v", err)
	}
	return parser
}

func TestServeCommandParsesFlags(t *testing.T) {
	c := &CLI{}
	parser := newParserForTest(t, c)

	if _, err := parser.Parse([]string{"serve", "--dev", "--listen", "http://127.0.0.1:9090", "--log-level", "debug"}); err != nil {
		t.Fatalf("parse serve returned error: %v", err)
	}
	if !c.Serve.Dev {
		t.Fatal("expected --dev to be set")
	}
	if c.Serve.Listen != "http://127.0.0.1:9090" {
		t.Fatalf("unexpected listen %q", c.Serve.Listen)
	}
	if c.Serve.LogLevel != "debug" {
		t.Fatalf("unexpected log level %q", c.Serve.LogLevel)
	}
}

func TestTokenCommandRequiresPrincipal(t *testing.T) {
	c := &CLI{}
	parser := newParserForTest(t, c)

	_, err := parser.Parse([]string{"token"})
	if err == nil {
		t.Fatal("expected parse error for missing principal")
	}
	if !strings.Contains(err.Error(), "<principal>") {
		t.Fatalf("expected missing principal parse error, got %v", err)
	}

	if _, err := parser.Parse([]string{"token", "mod-1", "--admin"}); err != nil {
		t.Fatalf("parse token returned error: %v", err)
	}
	if c.Token.Principal != "mod-1" || !c.Token.Admin {
		t.Fatalf("unexpected token command: %+v", c.Token)
	}
}

func TestReviewCommandRequiresIDAndVerdict(t *testing.T) {
	c := &CLI{}
	parser := newParserForTest(t, c)

	if _, err := parser.Parse([]string{"review", "abc123"}); err == nil {
		t.Fatal("expected parse error for missing verdict")
	}

	if _, err := parser.Parse([]string{"review", "abc123", "posted"}); err != nil {
		t.Fatalf("parse review returned error: %v", err)
	}
	if c.Review.ID != "abc123" || c.Review.Verdict != "posted" {
		t.Fatalf("unexpected review command: %+v", c.Review)
	}
}

func TestUpdateCommandParsesPatchFlags(t *testing.T) {
	c := &CLI{}
	parser := newParserForTest(t, c)

	if _, err := parser.Parse([]string{"update", "abc123", "--name", "renamed", "--component-ref", "component-7"}); err != nil {
		t.Fatalf("parse update returned error: %v", err)
	}
	if c.Update.ID != "abc123" || c.Update.Name != "renamed" || c.Update.ComponentRef != "component-7" {
		t.Fatalf("unexpected update command: %+v", c.Update)
	}
}

func TestClientCommandsAcceptHostFlag(t *testing.T) {
	c := &CLI{}
	parser := newParserForTest(t, c)

	if _, err := parser.Parse([]string{"list", "--host", "unix:///tmp/studio.sock", "--token", "jwt"}); err != nil {
		t.Fatalf("parse list returned error: %v", err)
	}
	if c.List.Host != "unix:///tmp/studio.sock" || c.List.Token != "jwt" {
		t.Fatalf("unexpected list command: %+v", c.List)
	}
}

func TestExitCodePassthrough(t *testing.T) {
	if got := ExitCode(exitCodeError{code: 3}); got != 3 {
		t.Fatalf("ExitCode returned %d, expected 3", got)
	}
	if got := ExitCode(errors.New("plain failure")); got != 1 {
		t.Fatalf("ExitCode for plain error returned %d, expected 1", got)
	}
}
