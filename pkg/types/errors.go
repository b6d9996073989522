package types

import "errors"

var (
	ErrInvalidPlayerName = errors.New("player name must be 1-50 characters")
	ErrInvalidGameID     = errors.New("game ID must be 6 uppercase alphanumeric characters")
)
