// Package extract turns an arbitrarily large CI console log into a small,
// deterministic excerpt bounded by a line budget.
//
// Extraction runs as a single streaming pass over the input:
//
//  1. Classification - each line is matched against an ordered severity rule
//     table (CRITICAL, then ERROR, then WARNING; first match wins)
//  2. Stage resolution - stage-boundary markers open a new stage window
//  3. Deduplication - matched blocks are fingerprinted by tier, exception
//     token, stage and normalized message and collapsed in first-seen order
//  4. Budget allocation - groups fill the soft budget tier by tier and are
//     clipped rather than dropped
//  5. Anchors - the first and last input lines are kept verbatim, and the
//     hard limit trims section content before anchors
//
// Basic usage:
//
//	engine, err := extract.New()
//	if err != nil {
//	    return err
//	}
//	result, err := engine.Extract(consoleText, extract.DefaultBudget())
//
// An Engine is immutable after New and may be shared between goroutines.
package extract
