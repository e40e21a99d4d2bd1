package dispatch

import "errors"

var (
	ErrAlreadyTerminal = errors.New("campaign already in a terminal state")
	ErrNoSender        = errors.New("no sender registered for platform")
)
