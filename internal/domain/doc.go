// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (sentiment.go, generation.go, api.go, errors.go) hold the
// shared types and the contracts between the HTTP layer, the application service,
// the scorers and the generation backend. No implementation code.
package domain
