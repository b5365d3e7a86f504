// SPDX-License-Identifier: MIT

// Package pathspace implements an in-process, hierarchical,
// concurrent path-addressed value and task space.
//
// Values are inserted and read through POSIX-like slash-separated
// paths, with glob routing (*, ?, [...]/[!...], and name[n] index
// suffixes) resolved against the tree of Leaf nodes maintained by
// internal/tree. Each node holds an ordered, heterogeneous FIFO queue
// of payload entries (internal/queue): plain values, nested subspace
// mounts, and executable tasks all share one insertion order.
//
// Reads (Read) are non-destructive; takes (Take) pop the matched
// entry. Both can block until a matching entry appears, subject to a
// deadline that env vars can clamp (internal/envcfg) for test
// environments. TaskFunc values inserted with an Immediate execution
// category run on an internal worker pool as soon as they land;
// Lazy tasks only start on their first ReadFuture.
//
// A *PathSpace can itself be inserted as a value, mounting it as a
// nested subspace at the insertion path: operations below the mount
// point delegate into the child space, which adopts its parent's wait
// context at mount time.
//
// The layer subpackages (layer/alias, layer/trellis,
// layer/snapshotcache, layer/ioext) compose with a PathSpace through
// the Base interface rather than reaching into its internals.
package pathspace
