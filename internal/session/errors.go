package session

import "errors"

var ErrNotYourTurn = errors.New("not your turn")
var ErrQuotaExhausted = errors.New("message quota exhausted")
var ErrEmptyMessage = errors.New("empty message")
var ErrMessageTooLong = errors.New("message too long")
var ErrAlreadyGuessed = errors.New("guess already recorded")
var ErrGuessTooEarly = errors.New("no message received yet")
var ErrOutOfOrder = errors.New("message out of turn order")
var ErrSessionOver = errors.New("session already resolved")
var ErrUnsupportedCommand = errors.New("unsupported command")
