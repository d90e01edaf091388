// Package trigger implements the deferred-trigger service behind planner
// reminders: a process-wide table of one-shot, time-armed callbacks keyed by
// an opaque token.
//
// Contract:
//   - Arm with an existing token replaces the prior arming (never duplicates).
//   - Disarm is idempotent; disarming an unknown token is not an error.
//   - The payload is delivered to the registered handler at-or-after the
//     armed instant, at most once per arming. Instants in the past fire
//     as soon as possible.
//   - Delivery timing is best-effort. Callers needing precise wakeups can
//     install an exact-wakeup hook, which is requested once, fire-and-forget,
//     before the first arming; arming proceeds regardless of its outcome.
//
// Callers must only touch tokens they derived themselves; the armed set is
// never enumerated or cleared wholesale.
package trigger
