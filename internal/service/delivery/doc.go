// Package delivery implements certificate email delivery: the
// single-participant send orchestrator, the batched bulk coordinator, the
// manual resend path, audit logging, reconciliation, and log retention.
//
// Per-participant email status transitions happen only here. Every send
// attempt appends one immutable EmailLog entry; the log, not the embedded
// participant state, is the source of truth after a crash.
//
// The service layer contains business logic only and depends on the
// interfaces in repository.go. It never imports net/http or database/sql.
package delivery
