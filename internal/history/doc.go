// Package history is the append-only audit trail: state transitions,
// accepted events, confirmations and escalation outcomes flow into
// pluggable sinks (log, bounded memory ring, JSON-lines file).
package history
