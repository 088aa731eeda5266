package protocol

import "bytes"

// ResultKind tags the outcome of a Parse or ParseStorageData call.
type ResultKind int

const (
	// ResultComplete means a command was fully parsed; Consumed holds the
	// number of leading bytes of the input that encode it.
	ResultComplete ResultKind = iota
	// ResultNeedMore means the buffer does not yet hold a full command.
	ResultNeedMore
	// ResultError means the buffer starts with a malformed command; Err
	// holds the classification.
	ResultError
)

// ParseResult is the outcome of parsing a single command from a byte
// slice. The parser never consumes its input directly: callers advance
// their own buffer by Consumed only when Kind == ResultComplete.
type ParseResult struct {
	Kind     ResultKind
	Command  Command
	Consumed int
	Err      error
}

// PendingSet is the transient state carried across a partial read when a
// SET header has been parsed but its data block has not yet fully
// arrived. Key is an owned copy, since the header and body may arrive in
// separate read buffers that don't share storage.
type PendingSet struct {
	Key           []byte
	Flags         uint32
	Exptime       uint64
	ByteCount     int
	NoReply       bool
	HeaderLineEnd int
}

// Parse inspects buf and returns one of Complete, NeedMore, or Error
// without consuming any of it. Parse is stateless; for SET, phase two
// (once the header is known) is reached through ParseStorageData instead.
func Parse(buf []byte) ParseResult {
	lineEnd := findCRLF(buf)
	if lineEnd < 0 {
		return ParseResult{Kind: ResultNeedMore}
	}

	line := buf[:lineEnd]
	name, rest := splitFirstToken(line)
	if len(name) == 0 {
		return errResult(ErrInvalidCommand)
	}

	switch {
	case tokenEqualFold(name, "get"):
		return parseGet(rest, lineEnd+2)
	case tokenEqualFold(name, "set"):
		return parseSet(rest, buf, lineEnd)
	case tokenEqualFold(name, "delete"):
		return parseDelete(rest, lineEnd+2)
	case tokenEqualFold(name, "version"):
		return ParseResult{Kind: ResultComplete, Command: Command{Kind: KindVersion}, Consumed: lineEnd + 2}
	case tokenEqualFold(name, "quit"):
		return ParseResult{Kind: ResultComplete, Command: Command{Kind: KindQuit}, Consumed: lineEnd + 2}
	default:
		return errResult(ErrInvalidCommand)
	}
}

// ParseStorageHeader parses only the SET header line (the portion up to
// the first CRLF), without requiring the data block to be present. It
// lets the connection engine distinguish "waiting for more body bytes"
// from "waiting for a new command" and avoid re-parsing the header on
// every subsequent read. It returns (nil, nil) if buf does not yet
// contain a full header line, or if the header line names a command
// other than SET (the engine only needs this for SET).
func ParseStorageHeader(buf []byte) (*PendingSet, error) {
	lineEnd := findCRLF(buf)
	if lineEnd < 0 {
		return nil, nil
	}

	line := buf[:lineEnd]
	name, rest := splitFirstToken(line)
	if len(name) == 0 {
		return nil, ErrInvalidCommand
	}
	if !tokenEqualFold(name, "set") {
		return nil, nil
	}

	key, flags, exptime, byteCount, noReply, err := parseSetHeaderFields(rest)
	if err != nil {
		return nil, err
	}

	return &PendingSet{
		Key:           append([]byte(nil), key...),
		Flags:         flags,
		Exptime:       exptime,
		ByteCount:     byteCount,
		NoReply:       noReply,
		HeaderLineEnd: lineEnd,
	}, nil
}

// ParseStorageData completes a SET whose header was already parsed into
// pending, once buf is believed to hold the full data block.
func ParseStorageData(buf []byte, pending *PendingSet) ParseResult {
	dataStart := pending.HeaderLineEnd + 2
	dataEnd := dataStart + pending.ByteCount
	totalNeeded := dataEnd + 2

	if len(buf) < totalNeeded {
		return ParseResult{Kind: ResultNeedMore}
	}
	if buf[dataEnd] != '\r' || buf[dataEnd+1] != '\n' {
		return errResult(ErrUnexpectedData)
	}

	return ParseResult{
		Kind: ResultComplete,
		Command: Command{
			Kind:    KindSet,
			Key:     pending.Key,
			Flags:   pending.Flags,
			Exptime: pending.Exptime,
			Data:    buf[dataStart:dataEnd],
			NoReply: pending.NoReply,
		},
		Consumed: totalNeeded,
	}
}

func parseGet(rest []byte, consumed int) ParseResult {
	var keys [][]byte
	for len(rest) > 0 {
		var tok []byte
		tok, rest = splitFirstToken(rest)
		if len(tok) == 0 {
			continue
		}
		if !IsValidKey(tok) {
			if len(tok) > MaxKeyLength {
				return errResult(ErrKeyTooLong)
			}
			return errResult(ErrInvalidKey)
		}
		keys = append(keys, tok)
	}

	if len(keys) == 0 {
		return errResult(ErrInvalidCommand)
	}

	return ParseResult{Kind: ResultComplete, Command: Command{Kind: KindGet, Keys: keys}, Consumed: consumed}
}

func parseSet(rest []byte, buf []byte, lineEnd int) ParseResult {
	key, flags, exptime, byteCount, noReply, err := parseSetHeaderFields(rest)
	if err != nil {
		return errResult(err)
	}

	dataStart := lineEnd + 2
	dataEnd := dataStart + byteCount
	totalNeeded := dataEnd + 2

	if len(buf) < totalNeeded {
		return ParseResult{Kind: ResultNeedMore}
	}
	if buf[dataEnd] != '\r' || buf[dataEnd+1] != '\n' {
		return errResult(ErrUnexpectedData)
	}

	return ParseResult{
		Kind: ResultComplete,
		Command: Command{
			Kind:    KindSet,
			Key:     key,
			Flags:   flags,
			Exptime: exptime,
			Data:    buf[dataStart:dataEnd],
			NoReply: noReply,
		},
		Consumed: totalNeeded,
	}
}

// parseSetHeaderFields parses "<key> <flags> <exptime> <bytes> [noreply]"
// (the command name has already been consumed by the caller).
func parseSetHeaderFields(rest []byte) (key []byte, flags uint32, exptime uint64, byteCount int, noReply bool, err error) {
	key, rest = splitFirstToken(rest)
	if len(key) == 0 {
		return nil, 0, 0, 0, false, ErrInvalidCommand
	}
	if !IsValidKey(key) {
		if len(key) > MaxKeyLength {
			return nil, 0, 0, 0, false, ErrKeyTooLong
		}
		return nil, 0, 0, 0, false, ErrInvalidKey
	}

	var flagsTok, exptimeTok, bytesTok, noReplyTok []byte
	flagsTok, rest = splitFirstToken(rest)
	exptimeTok, rest = splitFirstToken(rest)
	bytesTok, rest = splitFirstToken(rest)
	noReplyTok, _ = splitFirstToken(rest)

	f, ok := parseUint(flagsTok, 32)
	if !ok {
		return nil, 0, 0, 0, false, ErrInvalidFlags
	}
	e, ok := parseUint(exptimeTok, 64)
	if !ok {
		return nil, 0, 0, 0, false, ErrInvalidExptime
	}
	b, ok := parseUint(bytesTok, 64)
	if !ok {
		return nil, 0, 0, 0, false, ErrInvalidBytesLen
	}

	return key, uint32(f), e, int(b), bytes.Equal(noReplyTok, []byte("noreply")), nil
}

// parseDelete handles "delete <key> [<exptime>] [noreply]". The optional
// middle token is accepted for router compatibility and discarded.
func parseDelete(rest []byte, consumed int) ParseResult {
	key, rest := splitFirstToken(rest)
	if len(key) == 0 {
		return errResult(ErrInvalidCommand)
	}
	if !IsValidKey(key) {
		if len(key) > MaxKeyLength {
			return errResult(ErrKeyTooLong)
		}
		return errResult(ErrInvalidKey)
	}

	noReply := false
	for len(rest) > 0 {
		var tok []byte
		tok, rest = splitFirstToken(rest)
		if len(tok) == 0 {
			continue
		}
		if bytes.Equal(tok, []byte("noreply")) {
			noReply = true
		}
	}

	return ParseResult{
		Kind:     ResultComplete,
		Command:  Command{Kind: KindDelete, Key: key, NoReply: noReply},
		Consumed: consumed,
	}
}

func errResult(err error) ParseResult {
	return ParseResult{Kind: ResultError, Err: err}
}

// findCRLF returns the index of the first "\r\n" in buf, or -1.
func findCRLF(buf []byte) int {
	for i := 0; i+1 < len(buf); {
		idx := bytes.IndexByte(buf[i:], '\r')
		if idx < 0 {
			return -1
		}
		pos := i + idx
		if pos+1 >= len(buf) {
			return -1
		}
		if buf[pos+1] == '\n' {
			return pos
		}
		i = pos + 1
	}
	return -1
}

// splitFirstToken splits line on the first space, returning the token
// before it and the remainder after it (with no leading space). Repeated
// spaces yield empty tokens, which callers skip.
func splitFirstToken(line []byte) (tok []byte, rest []byte) {
	idx := bytes.IndexByte(line, ' ')
	if idx < 0 {
		return line, nil
	}
	return line[:idx], line[idx+1:]
}

// tokenEqualFold reports whether tok case-insensitively equals want (want
// is already lowercase ASCII). It never allocates.
func tokenEqualFold(tok []byte, want string) bool {
	if len(tok) != len(want) {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != want[i] {
			return false
		}
	}
	return true
}

// parseUint parses an exact ASCII decimal unsigned integer (no sign, no
// whitespace, no leading/trailing garbage) into a value fitting bitSize
// bits.
func parseUint(tok []byte, bitSize int) (uint64, bool) {
	if len(tok) == 0 {
		return 0, false
	}
	var v uint64
	var max uint64 = 1<<uint(bitSize) - 1
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := uint64(c - '0')
		if v > (max-d)/10 {
			return 0, false
		}
		v = v*10 + d
	}
	return v, true
}
