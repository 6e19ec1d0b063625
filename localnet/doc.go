// Package localnet provides the domain model for standing up a local parsec
// cluster: shard, ticket machine and agent processes on one host.
//
// # Reading Guide
//
// Start with these files:
//   - topology.go: user-requested counts and their derived physical counts
//   - plan.go: expansion of a Topology into an ordered list of launch Units
//   - handle.go: ProcessHandle, the record of one started process
//
// # Architecture
//
// The localnet package holds shared types only; behavior lives in sub-packages:
//   - localnet/ports/: port probing, allocation and the pre-flight availability check
//   - localnet/launch/: argument building, readiness waits and process start
//   - localnet/registry/: creation-ordered bookkeeping of committed handles
//   - localnet/teardown/: bounded-parallel termination by handle or by name
//   - localnet/cluster/: the Orchestrator that composes the above
//
// A run moves through Planning, PortChecking, Launching one Unit at a time
// (each Unit is committed or rolled back as a whole), Done, and an optional
// Teardown. Shortfalls are reported, never retried.
package localnet
