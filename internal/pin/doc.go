// Package pin holds the two immutable revision pins (outer repository and
// nested sub-dependency) and resolves them to exactly one commit each.
// Resolution never falls back to a branch tip.
package pin
