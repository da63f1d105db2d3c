// Package analysis runs the statistical tests used to explore the enriched
// events: ordinary least squares correlation between state-level variables,
// chi-squared independence tests over contingency tables, and the per-state
// profile table that joins shootings with demographics and police spending.
package analysis
