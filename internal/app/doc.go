// Package app provides the application service layer.
//
// Service is the explicit application state handed to the HTTP layer: the
// sentiment scorer and the generation adapter. Handlers route every operation
// through it and never touch the model handle directly.
package app
