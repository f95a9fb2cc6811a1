// Package analytics derives the dashboard's summary statistics from a
// repaired price matrix: day-over-day returns, annualized return and
// volatility, normalized trend series, a trailing moving average, the
// total-return ranking, and a descriptive-statistics table.
//
// Policy for pathological inputs, decided here rather than inherited:
// a zero price in a divisor position raises a DataQualityError instead
// of silently propagating Inf or NaN. Columns with no observations at
// all (degenerate columns) are skipped; the pipeline package detects and
// reports them separately so partial output survives for the rest of the
// universe.
package analytics
