// Package ports finds free TCP ports for the cluster's processes.
//
// A port is considered open when a connection attempt to it is refused,
// i.e. nothing is listening. The Allocator remembers every port it has
// handed out during a run so two processes never receive the same port,
// and serializes probe-and-claim under a single lock.
package ports
