// Package sentiment implements the text sentiment scorers.
//
// KeywordScorer is the default: case-insensitive substring counting against two
// fixed word lists. VaderScorer is an opt-in lexicon scorer. Both are pure and
// hold no mutable state.
package sentiment
