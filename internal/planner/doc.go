// Package planner owns the weekly study planner: computing when a recurring
// event next occurs, keeping a reminder trigger armed for it, and projecting
// the per-user event set for realtime consumers.
//
// The recurrence math is pure; everything stateful is delegated to the
// injected store and trigger service. One trigger token exists per event id,
// so re-scheduling replaces rather than duplicates.
package planner
