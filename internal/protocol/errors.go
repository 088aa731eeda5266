package protocol

import "errors"

// Error kinds produced by the parser. All of them are recovered locally by
// the connection engine: it emits a CLIENT_ERROR line, resynchronizes to
// the next command boundary, and continues.
var (
	ErrInvalidCommand  = errors.New("invalid command")
	ErrInvalidKey      = errors.New("invalid key")
	ErrKeyTooLong      = errors.New("key too long")
	ErrInvalidFlags    = errors.New("invalid flags")
	ErrInvalidExptime  = errors.New("invalid exptime")
	ErrInvalidBytesLen = errors.New("invalid bytes length")
	ErrUnexpectedData  = errors.New("unexpected data")
	ErrValueTooLarge   = errors.New("value too large")
)

// IncompleteCommand is an internal-only parse signal, never returned as an
// error: NeedMore (see ParseResult) carries it instead.
