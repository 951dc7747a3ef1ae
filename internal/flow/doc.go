// Package flow defines automation flow graphs and their registry.
//
// # Data Model
//
// A Flow is a directed graph of nodes joined by conditioned connections,
// mirroring the JSON payload served by the flow authoring service:
//
//	type Flow struct {
//	    ID          string
//	    IsActive    bool
//	    Nodes       []Node
//	    Connections []Connection
//	}
//
// The first node in declaration order is the entry node. Connections carry
// an ordered keyword list; an empty list matches any input.
//
// # Registry
//
// The Registry keeps the latest snapshot of active flows, pulled from a
// Source on a fixed interval:
//
//	reg := flow.NewRegistry(flow.NewHTTPSource(url), 30*time.Second, logger)
//	go reg.Run(ctx)
//
// The snapshot swaps atomically on each successful refresh; a fetch failure
// retains the previous snapshot, so a flaky authoring service degrades to
// stale flows rather than no flows.
//
// # Sources
//
// Two Source implementations ship with the gateway: HTTPSource for the
// authoring service and FileSource for local development against a static
// JSON file.
package flow
