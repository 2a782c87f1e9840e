// Package extract copies an allow-listed subset of a materialized tree into
// a fresh destination.
package extract
