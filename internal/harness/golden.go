package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/ir"
)

// Snapshot is the label-mapped view of a converged issue that golden files
// record. Action ids are replaced by scenario labels; keys are the author
// names the scenario signs with.
type Snapshot struct {
	ScenarioName string
	Orders       int
	FoldOrder    []string
	Issue        cob.Issue
	label        func(cob.ActionID) string
}

// NewSnapshot builds the snapshot of a scenario result.
func NewSnapshot(name string, result *Result) *Snapshot {
	return &Snapshot{
		ScenarioName: name,
		Orders:       result.Orders,
		FoldOrder:    result.FoldOrder,
		Issue:        result.Issue,
		label:        result.Label,
	}
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// accepts maps, slices and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	issue := s.Issue

	labels := append([]string{}, issue.Labels...)
	assignees := make([]string, 0, len(issue.Assignees))
	for _, k := range issue.Assignees {
		assignees = append(assignees, string(k))
	}

	embeds := make([]any, 0, len(issue.Embeds))
	for _, e := range issue.Embeds {
		embeds = append(embeds, map[string]any{
			"name":    e.Name,
			"content": e.Content,
			"removed": e.Removed,
		})
	}

	comments := make([]any, 0, len(issue.Comments))
	for _, c := range issue.Comments {
		replyTo := ""
		if c.ReplyTo != "" {
			replyTo = s.label(c.ReplyTo)
		}
		commentEmbeds := make([]any, 0, len(c.Embeds))
		for _, e := range c.Embeds {
			commentEmbeds = append(commentEmbeds, map[string]any{"name": e.Name, "content": e.Content})
		}
		edits := make([]string, 0, len(c.Edits))
		for _, e := range c.Edits {
			edits = append(edits, s.label(e.Action))
		}
		reactions := make([]string, 0, len(c.Reactions))
		for _, r := range c.Reactions {
			reactions = append(reactions, string(r.Author)+":"+r.Reaction)
		}
		comments = append(comments, map[string]any{
			"id":        s.label(c.ID),
			"author":    string(c.Author),
			"body":      c.Body,
			"reply_to":  replyTo,
			"embeds":    commentEmbeds,
			"edits":     edits,
			"reactions": reactions,
			"redacted":  c.Redacted,
			"timestamp": c.Timestamp,
		})
	}

	state := map[string]any{"status": string(issue.State.Status)}
	if issue.State.Reason != "" {
		state["reason"] = string(issue.State.Reason)
	}

	return map[string]any{
		"scenario":   s.ScenarioName,
		"orders":     s.Orders,
		"fold_order": append([]string{}, s.FoldOrder...),
		"issue": map[string]any{
			"id":          s.label(issue.ID),
			"author":      string(issue.Author),
			"title":       issue.Title,
			"description": issue.Description,
			"state":       state,
			"labels":      labels,
			"assignees":   assignees,
			"embeds":      embeds,
			"comments":    comments,
			"timestamp":   issue.Timestamp,
			"actions":     issue.Actions,
		},
	}
}

// Marshal returns the canonical JSON of the snapshot.
func (s *Snapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden runs a scenario, fails the test on divergence or a failed
// expectation, and compares the converged issue against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
