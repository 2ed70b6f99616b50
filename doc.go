// Package taskkernel provides lock-free concurrency primitives and task
// schedulers for building high-throughput, low-latency concurrent
// systems in Go.
//
// Design goals
//
// The module is designed around the following principles:
//
//   - Minimize allocations and garbage collection pressure on hot paths
//   - Avoid locks where a CAS loop suffices
//   - Give every bounded structure an explicit, typed failure mode
//     instead of blocking forever or panicking
//   - Keep each primitive usable on its own, and cheap to compose
//
// Architecture overview
//
// The module is organized into independently usable layers:
//
//  1. Memory (mempool)
//     A typed slab allocator with a free list. The lfqueue structures
//     allocate their nodes from one so addresses stay stable across the
//     CAS races that swing head/tail pointers; the work-stealing deques
//     use plain growable arrays instead.
//
//  2. Lock-free data structures (lfqueue)
//     A Michael–Scott multi-producer multi-consumer queue, and a
//     timeout-aware channel variant with two-phase publish to avoid
//     torn reads between a producer's link CAS and its value write.
//
//  3. Scheduling (priority, workstealing)
//     Two independent scheduler designs with different tradeoffs: a
//     priority/delay scheduler for workloads where ordering and
//     deadlines matter, and a work-stealing scheduler for workloads
//     where raw per-task dispatch overhead matters more than ordering.
//
//  4. Execution (executor)
//     A future-returning thread pool wrapping its own priority queue,
//     for callers that want a result back from each submission instead
//     of a fire-and-forget task.
//
// Error handling
//
// Every bounded operation that can fail returns one of the sentinel
// errors in the internal kerrors package — QueueFull, QueueEmpty,
// Timeout, SchedulerStopped — rather than blocking indefinitely or
// throwing. A task function's panic is recovered instead of taking down
// the worker that ran it: the executor hands it to the future's caller
// as a *kerrors.TaskPanicError, while the priority and work-stealing
// schedulers log it and drop it.
//
// Non-goals
//
// This module has no I/O surface: no network transport, no wire
// protocol, no file format, no CLI. It is a library of in-process
// concurrency primitives, meant to be imported and composed into
// something else's service loop.
package taskkernel
