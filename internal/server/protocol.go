package server

import (
	"bufio"
	"bytes"
	"io"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"

	"github.com/kushalsai-01/resolvecache/internal/cache"
)

const (
	MaxKeySize     = cache.MaxKeySize
	MaxCommandSize = 1 << 12

	Separator = "\r\n"

	ResolveCommand = "resolve"
	RemoveCommand  = "remove"
	SizeCommand    = "size"
	StatsCommand   = "stats"
	QuitCommand    = "quit"

	RemovedResponse     = "REMOVED"
	SizeResponse        = "SIZE"
	StatResponse        = "STAT"
	EndResponse         = "END"
	ErrorResponse       = "ERROR"
	ClientErrorResponse = "CLIENT_ERROR"
	ServerErrorResponse = "SERVER_ERROR"

	OutBufferSize = 4 * (1 << 10)
)

var (
	ErrTooLargeKey        = errors.New("too large key")
	ErrTooManyFields      = errors.New("too many fields")
	ErrMoreFieldsRequired = errors.New("more fields required")
	ErrTooLargeCommand    = errors.New("command length is too big")
	ErrEmptyCommand       = errors.New("empty command")
	ErrInvalidCharInKey   = errors.New("key contains invalid characters")
	ErrInvalidValue       = errors.New("value contains a line break")
)

func isInvalidFieldChar(b byte) bool {
	return b <= ' ' || b == 127
}

func checkKey(p []byte) error {
	if len(p) > MaxKeySize {
		return stackerr.Wrap(ErrTooLargeKey)
	}
	for _, b := range p {
		if isInvalidFieldChar(b) {
			return stackerr.Wrap(ErrInvalidCharInKey)
		}
	}
	return nil
}

// checkValue rejects values that would split into several response lines.
func checkValue(v string) error {
	for i := 0; i < len(v); i++ {
		if v[i] == '\r' || v[i] == '\n' {
			return stackerr.Wrap(ErrInvalidValue)
		}
	}
	return nil
}

// parseKeyField expects exactly one field holding a valid key.
func parseKeyField(fields [][]byte) (string, error) {
	switch {
	case len(fields) < 1:
		return "", stackerr.Wrap(ErrMoreFieldsRequired)
	case len(fields) > 1:
		return "", stackerr.Wrap(ErrTooManyFields)
	}
	if err := checkKey(fields[0]); err != nil {
		return "", err
	}
	return string(fields[0]), nil
}

func checkNoFields(fields [][]byte) error {
	if len(fields) != 0 {
		return stackerr.Wrap(ErrTooManyFields)
	}
	return nil
}

type reader struct {
	*bufio.Reader
}

func newReader(r io.Reader) reader {
	return reader{Reader: bufio.NewReaderSize(r, MaxCommandSize)}
}

// readCommand reads one line. A bare "\n" terminator is accepted too.
// WARN: returned byte slices point into the read buffer and are invalidated
// by the next read.
func (r reader) readCommand() (command []byte, fields [][]byte, clientErr, err error) {
	var line []byte
	line, err = r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		clientErr = stackerr.Wrap(ErrTooLargeCommand)
		err = r.discardCommand()
		return
	}
	if err == io.EOF {
		if len(line) != 0 {
			err = stackerr.Wrap(io.ErrUnexpectedEOF)
		}
		return
	}
	if err != nil {
		err = stackerr.Wrap(err)
		return
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	split := bytes.Fields(line)
	if len(split) == 0 {
		clientErr = stackerr.Wrap(ErrEmptyCommand)
		return
	}
	command = split[0]
	fields = split[1:]
	return
}

// discardCommand discards all input until the next line end.
func (r reader) discardCommand() error {
	for {
		_, err := r.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			continue
		}
		return stackerr.Wrap(err)
	}
}

func unwrap(err error) error {
	type hasUnderlying interface {
		Underlying() error
	}
	if eh, ok := err.(hasUnderlying); ok {
		return eh.Underlying()
	}
	return err
}
