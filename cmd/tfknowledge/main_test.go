package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkops-ai/tfknowledge"
	"github.com/talkops-ai/tfknowledge/ai/mock"
	"github.com/talkops-ai/tfknowledge/config"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/orchestrator"
	"github.com/urfave/cli/v2"
)

const vpcDoc = "# Resource: aws_vpc\n" +
	"\n" +
	"Provides a VPC resource.\n" +
	"\n" +
	"## Argument Reference\n" +
	"\n" +
	"* `cidr_block` - (Optional) The IPv4 CIDR block for the VPC.\n"

type testEnv struct {
	dir    string
	config string
	envArg []string
}

// newTestEnv writes a config file pointing every path into a temp dir and
// swaps the AI provider for a deterministic mock.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tfknowledge.yaml")
	cfg := fmt.Sprintf(`
log_file: %s
store:
  path: %s
  dimensions: 8
search:
  threshold: 0
`, filepath.Join(dir, "ingestion_log.csv"), filepath.Join(dir, "db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	orig := openKnowledge
	openKnowledge = func(ctx context.Context, cfg *config.Config, opts ...tfknowledge.Option) (*tfknowledge.Knowledge, error) {
		return tfknowledge.Open(ctx, cfg, append(opts, tfknowledge.WithProvider(mock.NewMockProvider(8)))...)
	}
	t.Cleanup(func() { openKnowledge = orig })

	return &testEnv{
		dir:    dir,
		config: cfgPath,
		envArg: []string{"--env-file", filepath.Join(dir, "missing.env")},
	}
}

func (e *testEnv) run(args ...string) (string, error) {
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut

	full := append([]string{"tfknowledge", "--config", e.config}, e.envArg...)
	err := app.Run(append(full, args...))
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	env := newTestEnv(t)

	for _, level := range []string{"debug", "info", "WARN", "error"} {
		t.Run(level, func(t *testing.T) {
			_, err := env.run("--log-level", level, "status")
			assert.NoError(t, err)
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		_, err := env.run("--log-level", "verbose", "status")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestParseDocs(t *testing.T) {
	docs, err := parseDocs([]string{
		"resource=docs/r/vpc.html.markdown",
		"datasource=https://example.com/d/vpc.html.markdown",
	})
	require.NoError(t, err)
	assert.Equal(t, []orchestrator.Document{
		{Source: "docs/r/vpc.html.markdown", Type: core.DocTypeResource},
		{Source: "https://example.com/d/vpc.html.markdown", Type: core.DocTypeDataSource},
	}, docs)

	for _, bad := range []string{"resource", "resource=", "module=x.md"} {
		_, err := parseDocs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestIngestStatusSearch(t *testing.T) {
	env := newTestEnv(t)
	doc := filepath.Join(env.dir, "vpc.html.markdown")
	require.NoError(t, os.WriteFile(doc, []byte(vpcDoc), 0o644))

	out, err := env.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingestion log is empty")

	out, err = env.run("ingest", "--doc", "resource="+doc)
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded: 1")
	assert.Contains(t, out, "chunks written: 2, failed: 0")

	out, err = env.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "success  3")

	out, err = env.run("search", "--top-k", "1", "vpc", "cidr")
	require.NoError(t, err)
	assert.Contains(t, out, "1. [")
	assert.Contains(t, out, "resource:aws_vpc:")
	assert.NotContains(t, out, "2. [")

	out, err = env.run("ingest", "--doc", "resource="+doc)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped:   1")
}

func TestIngestFailuresReturnError(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("ingest", "--doc", "best_practice="+filepath.Join(env.dir, "guide.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 document(s) failed")
	assert.Contains(t, out, "failed:    1")
	assert.Contains(t, out, "guide.pdf")
}

func TestCommandErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ingest without sources", []string{"ingest"}, "nothing to ingest"},
		{"ingest with bad doc", []string{"ingest", "--doc", "bogus"}, "invalid --doc"},
		{"ingest with bad mode", []string{"ingest", "--mode", "magic", "--doc", "resource=x.md"}, "invalid configuration"},
		{"search without query", []string{"search"}, "QUERY"},
		{"search with bad type", []string{"search", "--type", "module", "vpc"}, "unknown node type"},
		{"search with bad top-k", []string{"search", "--top-k", "51", "vpc"}, "invalid top_k"},
		{"watch without dirs", []string{"watch"}, "nothing to watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIngestFlags(t *testing.T) {
	app := newApp()
	var ingest *cli.Command
	for _, cmd := range app.Commands {
		if cmd.Name == "ingest" {
			ingest = cmd
		}
	}
	require.NotNil(t, ingest)

	names := make(map[string]bool)
	for _, f := range ingest.Flags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	for _, want := range []string{"index", "scan-dir", "doc", "mode", "type", "service", "content-hash", "progress", "metrics-addr"} {
		assert.True(t, names[want], want)
	}
}
