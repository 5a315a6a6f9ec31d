package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/identity"
	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/testutil"
)

const testRepo = "/v1/repos/heartwood"

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	store := issues.New(issues.WithNow(clock.Now))

	dir := identity.NewDirectory()
	require.NoError(t, dir.Add("node", "Node"))

	handler, err := New(Config{
		Issues:   store,
		Signer:   testutil.NewSigner("node"),
		Resolver: dir,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func createIssue(t *testing.T, srv *httptest.Server, n issues.NewIssue) IssueResponse {
	t.Helper()
	resp, data := doJSON(t, srv, http.MethodPost, testRepo+"/issues", n)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	return decode[IssueResponse](t, data)
}

func apply(t *testing.T, srv *httptest.Server, id cob.ActionID, req ApplyRequest) (*http.Response, []byte) {
	t.Helper()
	return doJSON(t, srv, http.MethodPost, testRepo+"/issues/"+string(id)+"/actions", req)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, data := doJSON(t, srv, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestCreateIssue(t *testing.T) {
	srv := newTestServer(t)

	issue := createIssue(t, srv, issues.NewIssue{Title: "Bug A", Labels: []string{"bug"}})

	assert.Len(t, issue.ID, 64)
	assert.Equal(t, "Bug A", issue.Title)
	assert.Equal(t, cob.Open(), issue.State)
	assert.Equal(t, []string{"bug"}, issue.Labels)
	assert.Equal(t, "Node", issue.Author.Alias)
	assert.Equal(t, cob.PublicKey("node"), issue.Author.Key)
	assert.Equal(t, 1, issue.Actions)
}

func TestCreateIssue_BlankTitle(t *testing.T) {
	srv := newTestServer(t)

	resp, data := doJSON(t, srv, http.MethodPost, testRepo+"/issues", map[string]any{"title": "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
	env := decode[errorEnvelope](t, data)
	assert.Equal(t, "invalid_document", env.Error.Code)
}

func TestGetIssue(t *testing.T) {
	srv := newTestServer(t)
	created := createIssue(t, srv, issues.NewIssue{Title: "Bug A"})

	resp, data := doJSON(t, srv, http.MethodGet, testRepo+"/issues/"+string(created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	got := decode[IssueResponse](t, data)
	assert.Equal(t, created, got)
}

func TestGetIssue_NotFound(t *testing.T) {
	srv := newTestServer(t)

	missing := strings.Repeat("0", 64)
	resp, data := doJSON(t, srv, http.MethodGet, testRepo+"/issues/"+missing, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, string(data))
	env := decode[errorEnvelope](t, data)
	assert.Equal(t, "not_found", env.Error.Code)
	assert.Equal(t, missing, env.Error.Details["issue"])
}

func TestGetIssue_MalformedID(t *testing.T) {
	srv := newTestServer(t)

	resp, data := doJSON(t, srv, http.MethodGet, testRepo+"/issues/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
}

func TestApplyAction(t *testing.T) {
	srv := newTestServer(t)
	created := createIssue(t, srv, issues.NewIssue{Title: "Bug A", Labels: []string{"bug"}})

	resp, data := apply(t, srv, created.ID, ApplyRequest{Op: cob.OpDocument{Type: cob.KindAddLabel, Label: "urgent"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, []string{"bug", "urgent"}, decode[IssueResponse](t, data).Labels)

	closed := cob.Closed(cob.ReasonSolved)
	resp, data = apply(t, srv, created.ID, ApplyRequest{Op: cob.OpDocument{Type: cob.KindSetStatus, State: &closed}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	issue := decode[IssueResponse](t, data)
	assert.Equal(t, closed, issue.State)
	assert.Equal(t, 3, issue.Actions)
}

func TestApplyAction_Comment(t *testing.T) {
	srv := newTestServer(t)
	created := createIssue(t, srv, issues.NewIssue{Title: "Crash"})

	resp, data := apply(t, srv, created.ID, ApplyRequest{Op: cob.OpDocument{Type: cob.KindComment, Body: "Seen it too"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	issue := decode[IssueResponse](t, data)
	require.Len(t, issue.Comments, 1)
	assert.Equal(t, "Seen it too", issue.Comments[0].Body)
	assert.Equal(t, "Node", issue.Comments[0].Author.Alias)
}

func TestApplyAction_Errors(t *testing.T) {
	srv := newTestServer(t)
	created := createIssue(t, srv, issues.NewIssue{Title: "Bug A"})
	unknown := cob.ActionID(strings.Repeat("a", 64))

	tests := []struct {
		name     string
		id       cob.ActionID
		req      ApplyRequest
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown issue",
			id:       unknown,
			req:      ApplyRequest{Op: cob.OpDocument{Type: cob.KindSetTitle, Title: "x"}},
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name:     "unknown parent",
			id:       created.ID,
			req:      ApplyRequest{Op: cob.OpDocument{Type: cob.KindSetTitle, Title: "x"}, Parents: []cob.ActionID{unknown}},
			wantCode: http.StatusConflict,
			wantErr:  "causality",
		},
		{
			name:     "create op",
			id:       created.ID,
			req:      ApplyRequest{Op: cob.OpDocument{Type: cob.KindCreate, Title: "again"}},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_action",
		},
		{
			name:     "unknown op type",
			id:       created.ID,
			req:      ApplyRequest{Op: cob.OpDocument{Type: "label.rename", Label: "x"}},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_document",
		},
		{
			name:     "blank label",
			id:       created.ID,
			req:      ApplyRequest{Op: cob.OpDocument{Type: cob.KindAddLabel, Label: " "}},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := apply(t, srv, tt.id, tt.req)
			require.Equal(t, tt.wantCode, resp.StatusCode, string(data))
			assert.Equal(t, tt.wantErr, decode[errorEnvelope](t, data).Error.Code)
		})
	}

	// Failed edits leave the issue unchanged
	resp, data := doJSON(t, srv, http.MethodGet, testRepo+"/issues/"+string(created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[IssueResponse](t, data).Actions)
}

func TestListIssues(t *testing.T) {
	srv := newTestServer(t)
	first := createIssue(t, srv, issues.NewIssue{Title: "First"})
	second := createIssue(t, srv, issues.NewIssue{Title: "Second"})

	closed := cob.Closed(cob.ReasonOther)
	resp, data := apply(t, srv, first.ID, ApplyRequest{Op: cob.OpDocument{Type: cob.KindSetStatus, State: &closed}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	list := func(query string) []IssueResponse {
		resp, data := doJSON(t, srv, http.MethodGet, testRepo+"/issues"+query, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		return decode[issueList](t, data).Items
	}

	all := list("")
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID, "most recently changed first")
	assert.Equal(t, second.ID, all[1].ID)

	open := list("?status=open")
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	closedOnly := list("?status=closed")
	require.Len(t, closedOnly, 1)
	assert.Equal(t, first.ID, closedOnly[0].ID)
}

func TestListIssues_UnknownRepo(t *testing.T) {
	srv := newTestServer(t)

	resp, data := doJSON(t, srv, http.MethodGet, "/v1/repos/nowhere/issues", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Empty(t, decode[issueList](t, data).Items)
}

func TestListIssues_InvalidStatus(t *testing.T) {
	srv := newTestServer(t)

	resp, data := doJSON(t, srv, http.MethodGet, testRepo+"/issues?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
}

func TestListActions(t *testing.T) {
	srv := newTestServer(t)
	created := createIssue(t, srv, issues.NewIssue{Title: "Bug A"})
	resp, data := apply(t, srv, created.ID, ApplyRequest{Op: cob.OpDocument{Type: cob.KindSetTitle, Title: "Bug B"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = doJSON(t, srv, http.MethodGet, testRepo+"/issues/"+string(created.ID)+"/actions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	items := decode[actionList](t, data).Items
	require.Len(t, items, 2)

	assert.Equal(t, created.ID, items[0].ID)
	assert.Equal(t, cob.KindCreate, items[0].Op.Type)
	assert.Empty(t, items[0].Parents)
	assert.Equal(t, cob.KindSetTitle, items[1].Op.Type)
	assert.Equal(t, []cob.ActionID{created.ID}, items[1].Parents)
	assert.Equal(t, "Node", items[1].Author.Alias)
}

func TestListActions_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, testRepo+"/issues/"+strings.Repeat("b", 64)+"/actions", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNew_RequiresStoreAndSigner(t *testing.T) {
	_, err := New(Config{Signer: testutil.NewSigner("node")})
	assert.Error(t, err)
	_, err = New(Config{Issues: issues.New()})
	assert.Error(t, err)
}
