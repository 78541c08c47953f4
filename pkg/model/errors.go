package model

import "errors"

var (
	ErrDataUnavailable   = errors.New("reference data unavailable")
	ErrUnknownDriver     = errors.New("unknown driver")
	ErrDivisionUndefined = errors.New("accuracy undefined for empty history")
	ErrUnknownTab        = errors.New("unknown tab")
	ErrNoModelResults    = errors.New("no model results")
	ErrRaceNotFound      = errors.New("race not found")
	ErrTrackNotFound     = errors.New("track not found")
)
