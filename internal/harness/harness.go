package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/schema"
	"github.com/roach88/cobs/internal/testutil"
)

const (
	// exhaustiveLimit is the largest scenario delivered in every order.
	exhaustiveLimit = 6

	defaultShuffles = 50
	defaultRepo     = "scenario"

	// maxDivergences bounds the number of diverging orders reported.
	maxDivergences = 3
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every replica converged and every expectation held.
	Pass bool `json:"pass"`

	// Errors holds divergence and expectation failures.
	Errors []string `json:"errors,omitempty"`

	// Orders is the number of delivery orders run.
	Orders int `json:"orders"`

	// Issue is the issue materialized by the first replica.
	Issue cob.Issue `json:"issue"`

	// FoldOrder is the labels of the actions in the order they were folded.
	FoldOrder []string `json:"fold_order"`

	labels map[cob.ActionID]string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		labels: make(map[cob.ActionID]string),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Label returns the scenario label of an action id, or the short id when
// the action is not part of the scenario.
func (r *Result) Label(id cob.ActionID) string {
	if label, ok := r.labels[id]; ok {
		return label
	}
	return id.Short()
}

// replica is what one delivery order produced.
type replica struct {
	issue cob.Issue
	fold  []cob.ActionID
}

// Harness holds the built actions of one scenario.
type Harness struct {
	scenario *Scenario
	repo     issues.RepoID
	actions  []cob.Action
	index    map[string]int
	logger   *slog.Logger
}

// Run builds the scenario's actions, delivers them to a fresh replica per
// delivery order, and checks that all replicas converge on the expected
// issue. The returned error covers malformed scenarios; divergence and
// failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, result, err := build(scenario)
	if err != nil {
		return nil, err
	}

	orders := h.deliveryOrders()
	result.Orders = len(orders)

	var first *replica
	var firstOrder []int
	divergences := 0
	for _, order := range orders {
		got, err := h.replay(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", h.describe(order), err)
		}
		if first == nil {
			first, firstOrder = got, order
			continue
		}
		if divergences == maxDivergences {
			continue
		}
		diff := cmp.Diff(first.issue, got.issue)
		if diff == "" {
			diff = cmp.Diff(first.fold, got.fold)
		}
		if diff != "" {
			divergences++
			result.AddError(fmt.Sprintf("order %s diverged from %s (-first +got):\n%s",
				h.describe(order), h.describe(firstOrder), diff))
		}
	}

	result.Issue = first.issue
	result.FoldOrder = make([]string, 0, len(first.fold))
	for _, id := range first.fold {
		result.FoldOrder = append(result.FoldOrder, result.Label(id))
	}
	checkExpect(&scenario.Expect, result)

	h.logger.Debug("scenario complete",
		"scenario", scenario.Name,
		"orders", result.Orders,
		"pass", result.Pass,
	)
	return result, nil
}

// build signs every step in declaration order. Comment references and
// parents are resolved from labels to the ids of earlier actions.
func build(s *Scenario) (*Harness, *Result, error) {
	repo := s.Repo
	if repo == "" {
		repo = defaultRepo
	}
	h := &Harness{
		scenario: s,
		repo:     issues.RepoID(repo),
		actions:  make([]cob.Action, 0, len(s.Actions)),
		index:    make(map[string]int, len(s.Actions)),
		logger:   slog.New(slog.DiscardHandler),
	}
	result := NewResult()

	ids := make(map[string]cob.ActionID, len(s.Actions))
	for i, step := range s.Actions {
		doc := step.Op
		if doc.ID != "" {
			doc.ID = ids[string(doc.ID)]
		}
		if doc.ReplyTo != "" {
			doc.ReplyTo = ids[string(doc.ReplyTo)]
		}

		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, nil, fmt.Errorf("action %q: %w", step.Label, err)
		}
		if err := schema.ValidateOp(raw); err != nil {
			return nil, nil, fmt.Errorf("action %q: %w", step.Label, err)
		}
		op, err := doc.Op()
		if err != nil {
			return nil, nil, fmt.Errorf("action %q: %w", step.Label, err)
		}

		parents := make([]cob.ActionID, 0, len(step.Parents))
		for _, p := range step.Parents {
			parents = append(parents, ids[p])
		}

		a, err := cob.NewAction(op, parents, step.Timestamp, testutil.NewSigner(step.Author))
		if err != nil {
			return nil, nil, fmt.Errorf("action %q: %w", step.Label, err)
		}
		if _, dup := result.labels[a.ID]; dup {
			return nil, nil, fmt.Errorf("action %q: identical to action %q", step.Label, result.labels[a.ID])
		}

		ids[step.Label] = a.ID
		result.labels[a.ID] = step.Label
		h.index[step.Label] = i
		h.actions = append(h.actions, a)
	}
	return h, result, nil
}

// deliveryOrders returns index permutations of the actions to deliver.
func (h *Harness) deliveryOrders() [][]int {
	n := len(h.actions)
	base := make([]int, n)
	for i := range base {
		base[i] = i
	}

	var orders [][]int
	if n <= exhaustiveLimit {
		orders = permutations(base)
	} else {
		shuffles := h.scenario.Shuffles
		if shuffles == 0 {
			shuffles = defaultShuffles
		}
		rng := rand.New(rand.NewPCG(h.scenario.Seed, h.scenario.Seed))
		orders = append(orders, base)
		for range shuffles {
			order := slices.Clone(base)
			rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
			orders = append(orders, order)
		}
	}

	for _, labels := range h.scenario.Orders {
		orders = append(orders, h.completeOrder(labels))
	}
	return orders
}

// completeOrder turns a possibly partial label order into a full index
// order, appending the unlisted actions in declaration order.
func (h *Harness) completeOrder(labels []string) []int {
	order := make([]int, 0, len(h.actions))
	listed := make(map[int]bool, len(labels))
	for _, label := range labels {
		i := h.index[label]
		order = append(order, i)
		listed[i] = true
	}
	for i := range h.actions {
		if !listed[i] {
			order = append(order, i)
		}
	}
	return order
}

// replay delivers the actions to a fresh replica in the given order.
func (h *Harness) replay(ctx context.Context, order []int) (*replica, error) {
	st := issues.New(issues.WithLogger(h.logger))
	inbox := issues.NewInbox(st)
	issueID := h.actions[0].ID

	for _, i := range order {
		if err := inbox.Deliver(ctx, h.repo, issueID, h.actions[i]); err != nil {
			return nil, err
		}
	}
	if n := inbox.Pending(); n > 0 {
		return nil, fmt.Errorf("%d actions never became applicable", n)
	}

	issue, ok := st.Get(h.repo, issueID)
	if !ok {
		return nil, fmt.Errorf("issue was not created")
	}
	log, err := st.Log(h.repo, issueID)
	if err != nil {
		return nil, err
	}
	fold := make([]cob.ActionID, 0, len(log))
	for _, a := range log {
		fold = append(fold, a.ID)
	}
	return &replica{issue: issue, fold: fold}, nil
}

func (h *Harness) describe(order []int) string {
	labels := make([]string, 0, len(order))
	for _, i := range order {
		labels = append(labels, h.scenario.Actions[i].Label)
	}
	return "[" + strings.Join(labels, " ") + "]"
}

// permutations returns every ordering of items, lexicographic by index.
func permutations(items []int) [][]int {
	if len(items) <= 1 {
		return [][]int{slices.Clone(items)}
	}
	var out [][]int
	for i := range items {
		rest := make([]int, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]int{items[i]}, p...))
		}
	}
	return out
}

// checkExpect compares the converged issue against the expectation.
func checkExpect(e *Expect, r *Result) {
	issue := r.Issue
	if e.Title != nil && issue.Title != *e.Title {
		r.AddError(fmt.Sprintf("title: expected %q, got %q", *e.Title, issue.Title))
	}
	if e.Description != nil && issue.Description != *e.Description {
		r.AddError(fmt.Sprintf("description: expected %q, got %q", *e.Description, issue.Description))
	}
	if e.Status != "" && string(issue.State.Status) != e.Status {
		r.AddError(fmt.Sprintf("status: expected %s, got %s", e.Status, issue.State.Status))
	}
	if e.Reason != "" && string(issue.State.Reason) != e.Reason {
		r.AddError(fmt.Sprintf("reason: expected %s, got %q", e.Reason, issue.State.Reason))
	}

	if e.Labels != nil {
		want := make([]string, 0, len(e.Labels))
		for _, l := range e.Labels {
			want = append(want, cob.NormalizeLabel(l))
		}
		slices.Sort(want)
		checkList(r, "labels", want, issue.Labels)
	}
	if e.Assignees != nil {
		got := make([]string, 0, len(issue.Assignees))
		for _, k := range issue.Assignees {
			got = append(got, string(k))
		}
		checkList(r, "assignees", slices.Sorted(slices.Values(e.Assignees)), got)
	}
	if e.Embeds != nil {
		var got []string
		for _, embed := range issue.LiveEmbeds() {
			got = append(got, embed.Name)
		}
		checkList(r, "embeds", e.Embeds, got)
	}
	if e.Comments != nil && len(issue.Comments) != *e.Comments {
		r.AddError(fmt.Sprintf("comments: expected %d, got %d", *e.Comments, len(issue.Comments)))
	}
	if e.FoldOrder != nil {
		checkList(r, "fold_order", e.FoldOrder, r.FoldOrder)
	}
}

func checkList(r *Result, field string, want, got []string) {
	if !slices.Equal(want, got) {
		r.AddError(fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}
}
