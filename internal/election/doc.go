// Package election defines the core types shared by the precinct scraping
// pipeline: the PrecinctResult record, the error taxonomy used to classify
// fetch, parse and write failures, the retry policy, and the interfaces the
// worker and dispatcher depend on.
package election
