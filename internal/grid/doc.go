// Package grid contains the interactive edit engine behind the transaction grid.
//
// Allowed here:
// - the row registry, selection set, per-cell edit sessions and drag-fill state
// - the operation arbiter that discards superseded asynchronous responses
// - the suggestion and find-similar workflows
//
// Not allowed here:
// - rendering (see internal/tui)
// - storage or LLM calls (reached only through Backend)
//
// Every call that talks to the Backend is returned as a tea.Cmd. Its result comes
// back as a message that must be routed to Grid.Update on the single update loop;
// no ordering between two commands is assumed.
package grid
