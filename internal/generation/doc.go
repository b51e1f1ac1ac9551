// Package generation owns the generation model handle.
//
// The Adapter loads the model once and then serves Generate calls. Callers
// never see an error from Generate: every call returns a domain.Generation
// tagged with its outcome, and the HTTP layer renders the message.
package generation
