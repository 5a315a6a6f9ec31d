package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/testutil"
)

// testEnv is an isolated cobs home: journal, key and aliases in a temp
// directory, a deterministic clock and fixed repository ids.
type testEnv struct {
	t     *testing.T
	dir   string
	clock *testutil.DeterministicClock
	ids   *issues.FixedGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return &testEnv{
		t:     t,
		dir:   dir,
		clock: testutil.NewDeterministicClock(),
		ids:   issues.NewFixedGenerator("repo-1", "repo-2", "repo-3"),
	}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// run executes the CLI with the environment's paths and returns stdout,
// stderr and the exit code.
func (e *testEnv) run(args ...string) (string, string, int) {
	e.t.Helper()
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) (string, string, int) {
	e.t.Helper()
	full := append([]string{
		"--db", e.path("cobs.db"),
		"--key", e.path("key.pem"),
		"--aliases", e.path("aliases.yaml"),
		"--no-color",
	}, args...)
	var stdout, stderr bytes.Buffer
	opts := &RootOptions{RepoIDs: e.ids, Now: e.clock.Now}
	code := execute(ctx, opts, full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// mustRun runs the CLI and fails the test on a non-zero exit.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	stdout, stderr, code := e.run(args...)
	require.Equal(e.t, ExitSuccess, code, "cobs %v failed: %s", args, stderr)
	return stdout
}

// runJSON runs the CLI in JSON mode and decodes the data payload into v.
func (e *testEnv) runJSON(v any, args ...string) {
	e.t.Helper()
	stdout := e.mustRun(append([]string{"--format", "json"}, args...)...)
	decodeJSON(e.t, stdout, v)
}

// decodeJSON parses a JSON success envelope and decodes its data into v.
func decodeJSON(t *testing.T, stdout string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status)
	// Reset v so fields omitted from this response do not keep stale values.
	rv := reflect.ValueOf(v).Elem()
	rv.Set(reflect.Zero(rv.Type()))
	require.NoError(t, json.Unmarshal(resp.Data, v), string(resp.Data))
}

// decodeError parses a JSON error envelope written to stderr.
func decodeError(t *testing.T, stderr string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stderr), &resp), stderr)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

// issueJSON is the subset of an issue view the tests inspect.
type issueJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	State       struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"state"`
	Labels    []string `json:"labels"`
	Assignees []string `json:"assignees"`
	Embeds    []struct {
		Name    string `json:"name"`
		Content string `json:"content"`
		Removed bool   `json:"removed"`
	} `json:"embeds"`
	Comments []struct {
		ID        string `json:"id"`
		Body      string `json:"body"`
		ReplyTo   string `json:"reply_to"`
		Redacted  bool   `json:"redacted"`
		Reactions []struct {
			Reaction string `json:"reaction"`
		} `json:"reactions"`
	} `json:"comments"`
	Actions        int `json:"actions"`
	AuthorIdentity struct {
		Key   string `json:"key"`
		Alias string `json:"alias"`
	} `json:"author_identity"`
}

// createIssue opens an issue through the CLI and returns it.
func (e *testEnv) createIssue(args ...string) issueJSON {
	e.t.Helper()
	var got issueJSON
	e.runJSON(&got, append([]string{"issue", "create"}, args...)...)
	return got
}
