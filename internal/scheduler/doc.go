// Package scheduler runs reconciliation sweeps on a fixed interval.
//
// A Scheduler has two states, stopped and running. Start sweeps once
// immediately and then on every tick of a robfig/cron ConstantDelay
// schedule. A sweep that is still executing when the next tick fires
// causes that tick to be skipped and logged; ticks are never queued.
package scheduler
