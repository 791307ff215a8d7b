// Package executor runs batches of action sequences in tick lockstep.
//
// A Coordinator owns one batch. It starts one goroutine per sequence and
// then drives ticks:
//
//  1. Every sequence that still has steps receives a proceed signal
//     carrying the tick's barrier.
//  2. Each sequence executes exactly one step and arrives at the barrier,
//     whether the step succeeded, failed or panicked.
//  3. The coordinator waits for the barrier, drops sequences that ran out
//     of steps, and starts the next tick.
//
// So step k+1 of any sequence starts only after step k of every sequence
// still active has finished. Within a tick, sibling sequences run in
// parallel and their effects on a shared device are unordered.
//
// Step failures stay inside the sequence that produced them and are
// collected in the Report. Every blocking wait (startup, barrier, proceed)
// is bounded and observes the batch context, so a stuck sibling surfaces
// as a *TimeoutError instead of a hang. A tick's bound grows by the
// longest glide or honored pause among its steps.
package executor
