// Package cluster brings up a local parsec cluster one unit at a time.
//
// An Orchestrator plans the topology, checks and claims ports, then launches
// each unit (shard, ticket machine, agent) as a transaction: the first failed
// launch rolls back whatever the unit already started and the run moves on to
// the next unit. Committed handles are kept in a registry so the run can be
// torn down at the end, on interrupt, or later from the run-state file.
package cluster
