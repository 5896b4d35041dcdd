// Package fanout launches N workers under one of two execution models and
// folds their identities into a single aggregate.
//
// The process model ([ProcessRunner]) starts N child processes through a
// [Spawner]. A child can report back only through its exit status, so the
// parent recovers an identity-derived value in 0..255 per child and nothing
// else: the workload result is lost at the process boundary.
//
// The thread model ([ThreadRunner]) runs N goroutines, each locked to an OS
// thread of its own. Memory is shared, so both the identity hash sum and the
// exact workload sum are recovered.
//
// Both runners block until every worker has finished and every child has been
// reaped.
package fanout
