package blocks

import (
	"errors"
	"fmt"
)

// ErrOutOfSteps aborts an evaluation that hit its step budget.
var ErrOutOfSteps = errors.New("out of steps")

// ExecError is a runtime fault inside one block.
type ExecError struct {
	Block string
	Msg   string
}

func (e *ExecError) Error() string { return fmt.Sprintf("block %s: %s", e.Block, e.Msg) }

func faultf(block, format string, args ...any) error {
	return &ExecError{Block: block, Msg: fmt.Sprintf(format, args...)}
}

// ParseError describes why a program was rejected. Path locates the
// offending element, e.g. block[controls_if].value[IF0].block[logic_compare].
type ParseError struct {
	Path string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

func parseErrorf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// AtPath prefixes err with path. Errors that already carry a path keep the
// innermost one.
func AtPath(path string, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		if pe.Path != "" {
			return pe
		}
		return &ParseError{Path: path, Msg: pe.Msg}
	}
	return &ParseError{Path: path, Msg: err.Error()}
}
