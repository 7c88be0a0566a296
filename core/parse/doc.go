// Package parse converts raw model text into structured values. Models
// frequently wrap JSON in markdown code fences or emit near-JSON with
// unquoted keys and trailing commas, so this package strips fences and
// applies automatic JSON repair before giving up with an error.
//
// The main entry point is the generic [ParseStringAs] function.
package parse
