/*
Package arbor coordinates hierarchical units of work for human operators and
AI agents. A workspace is a tree of nodes: planning nodes decompose and
coordinate, execution nodes carry the actual work. The library owns the node
lifecycle, assembles bounded context for executors, and reconciles dispatched
work back into a git working line.

# Concept

Every workspace has a planning root. Planning nodes own children and move
through planning and monitoring before completion; execution nodes are leaves
that move from implementing through validating to a terminal state. All legal
moves come from an explicit transition table, so a given (status, action)
pair always behaves the same way.

Context for an executor is assembled from the node's ancestor chain,
truncated at the nearest isolation boundary, together with active references,
child conclusions and workspace rules. This keeps each executor's view small
and deliberate even in deep trees.

Dispatch maps node execution onto git: enabling it cuts a process branch and
a pristine backup branch, execution nodes record their producing commits, and
disabling reconciles the process branch back with one of four merge
strategies (sequential, squash, cherry-pick, skip).

# Usage

Open a client against a directory; graphs and node content are stored under
its .arbor/ subdirectory.

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/arbor"
		"github.com/aretw0/arbor/pkg/domain"
		"github.com/aretw0/arbor/pkg/graph"
	)

	func main() {
		client, err := arbor.Open(".")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		g, err := client.Init(ctx, "release-42", "Ship release 42", "cut, test and publish the release")
		if err != nil {
			log.Fatal(err)
		}

		node, err := client.CreateNode(ctx, "release-42", graph.CreateRequest{
			ParentID: g.RootID,
			Type:     domain.NodeTypeExecution,
			Title:    "Run the integration suite",
		})
		if err != nil {
			log.Fatal(err)
		}

		if _, err := client.Transition(ctx, "release-42", node.ID, graph.TransitionRequest{
			Action: domain.ActionStart,
		}); err != nil {
			log.Fatal(err)
		}
	}

The same operations are available over HTTP (pkg/adapters/http), MCP
(pkg/adapters/mcp) and the arbor CLI (cmd/arbor).
*/
package arbor
