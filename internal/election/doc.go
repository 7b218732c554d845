// Package election holds the pure rules of the ballot service: lifecycle
// classification, voter visibility, roster validation, search and tally
// aggregation.
//
// Nothing here touches storage or reads the clock. Every function that
// depends on time takes "now" as an argument, so results are
// deterministic and the same inputs always give the same output.
package election
