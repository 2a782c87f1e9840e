// Package materialize turns a pin set into a checked-out content tree in
// scratch space: the outer repository at its pinned commit, only the named
// submodules initialized, the inner sub-dependency at its own pin, and all
// version-control metadata discarded afterwards.
package materialize
