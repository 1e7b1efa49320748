// Package conversation implements the conversation lifecycle state machine
// and its role-scoped authorization rules.
//
// # State Machine
//
// A conversation moves through exactly three states, monotonically:
//
//	open -> assigned -> closed
//
// Transitions:
//
//   - Create: a candidate starts a conversation in "open" under a
//     supervisor. Rejected while the candidate still holds a non-closed
//     conversation.
//   - Assign: the owning supervisor binds one of their agents. The binding
//     is set at most once.
//   - MarkAssigned: the implicit open -> assigned side effect of the bound
//     agent joining the real-time room. Idempotent when already assigned.
//   - Close: two independent paths. The owning supervisor (or an admin)
//     closes via the request/response API while the status is still "open";
//     the bound agent closes via the real-time channel while the status is
//     "assigned". The differing preconditions are intentional: each role has
//     a terminal action for the lifecycle stage it owns.
//
// # Authorization
//
// Every mutating operation takes the acting identity and checks ownership
// before touching the record: candidates act only on conversations they
// created, agents only where they are the bound agent, supervisors only on
// conversations they own. Violations surface as ErrForbidden and related
// sentinel errors, which the transport layers translate to wire codes or
// HTTP statuses.
//
// # Split close for the real-time path
//
// The agent close must flush the in-memory message buffer between the
// authorization check and the status transition, so the service exposes
// AuthorizeAgentClose and MarkClosed separately and the session dispatcher
// sequences: authorize, flush, mark closed.
package conversation
