package domain

import "errors"

var (
	ErrLoadAttempted  = errors.New("model load already attempted")
	ErrModelNotLoaded = errors.New("model not loaded")
)
