package domain

import "errors"

var (
	ErrPartNotFound       = errors.New("part not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrUnknownPartType    = errors.New("unknown part type")
	ErrInvalidPart        = errors.New("invalid part")
	ErrInvalidPatch       = errors.New("invalid part update")
	ErrNotCard            = errors.New("part is not a card")
	ErrNotDeck            = errors.New("part is not a deck")
	ErrNotReversible      = errors.New("card is not reversible")
	ErrUnknownOrderChange = errors.New("unknown order change")
	ErrOrderGapExhausted  = errors.New("order gap below resolution")
	ErrInvalidBounds      = errors.New("lower order bound is not below upper bound")
	ErrBoardFull          = errors.New("board part limit reached")
)
