package ir

// NodeID and ValueID are indices into a Graph's owning slabs rather than
// pointers, per the arena-based IR recommended in spec §9: this makes
// remove_node/remove_value safe (no dangling back-references) and
// clone a straightforward structural copy.
type NodeID int64

// ValueID identifies a Value within a Graph.
type ValueID int64

// NoNode / NoValue are the sentinels for "no producer" and
// similar absent-reference fields. Real IDs are assigned starting at 0
// via the Graph's monotonic counters, so -1 is used as the sentinel.
const (
	NoNode  NodeID  = -1
	NoValue ValueID = -1
)
