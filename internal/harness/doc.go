// Package harness runs convergence scenarios against the issue model.
//
// A scenario declares a small DAG of labelled actions and what the issue
// must look like once all of them are known. The harness delivers the same
// actions to independent replicas in many different orders and fails if any
// two replicas disagree, or if the agreed issue does not match the
// expectation.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: label_race
//	description: "Concurrent add and remove of the same label"
//	actions:
//	  - label: create
//	    author: carol
//	    timestamp: 1000
//	    op: { type: create, title: "Race" }
//	  - label: add
//	    author: alice
//	    timestamp: 1001
//	    parents: [create]
//	    op: { type: label.add, label: x }
//	orders:
//	  - [add, create]
//	expect:
//	  labels: []
//
// Parents and the id and reply_to fields of comment ops name other actions
// by label. The first action must be the create.
//
// # Delivery Orders
//
// Up to six actions, every permutation is delivered. Larger scenarios are
// delivered in declaration order plus a number of shuffles drawn from a
// fixed seed, so runs are reproducible. Explicit orders are always run in
// addition, and may list a subset of the actions; the remainder follows
// in declaration order.
//
// # Deterministic Output
//
// Authors sign with testutil.Signer, whose key is the author name, and
// every timestamp comes from the scenario. RunWithGolden snapshots the
// agreed issue with every action id replaced by its label, so golden files
// never change when hashing does.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/label_race.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
