// Package pipeline implements the three-stage missing-data demonstration:
// the original matrix as acquired, a deterministically corrupted copy, and
// a repaired copy produced by forward-fill followed by backward-fill.
//
// Corruption is driven by an explicit GapPlan keyed by security symbol, not
// by column position, so the demonstration survives universe reordering.
// Every stage operates on a deep copy; no stage mutates its input.
package pipeline
