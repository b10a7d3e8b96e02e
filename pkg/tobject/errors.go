package tobject

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownBlock is returned when a block name is not in the template's manifest.
	ErrUnknownBlock = errors.New("unknown block")
	// ErrUnknownVariable is returned when a variable name is not in the template's manifest.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrUnknownFilter is returned when a filter name is not registered.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrInvalidFilterName is returned by AddFilter for names outside [a-z][a-z0-9]*.
	ErrInvalidFilterName = errors.New("invalid filter name")
	// ErrFilterExists is returned by AddFilter when overwriting was not requested.
	ErrFilterExists = errors.New("filter already exists")
	// ErrInvalidFilter is returned by AddFilter for a nil filter.
	ErrInvalidFilter = errors.New("filter is not callable")
	// ErrNotFound is returned by loaders when a template path cannot be located.
	ErrNotFound = errors.New("template not found")
	// ErrRecursiveExtend marks an EXTEND chain that revisits a path.
	ErrRecursiveExtend = errors.New("recursive extending")
	// ErrRecursiveInclude marks an INCLUDE chain that revisits a path.
	ErrRecursiveInclude = errors.New("recursive inclusion")
	// ErrUnsupportedValue is returned by SetVarArray for values it cannot bind.
	ErrUnsupportedValue = errors.New("unsupported value")
)

// CycleKind tells which directive produced a CycleError.
type CycleKind string

const (
	CycleExtend  CycleKind = "extend"
	CycleInclude CycleKind = "include"
)

// CycleError is the fatal error returned when an EXTEND or INCLUDE chain
// reaches a path it has already visited. Chain lists the paths that were
// being expanded, in order, when Path came up again.
type CycleError struct {
	Kind  CycleKind
	Path  string
	Chain []string
}

func (e *CycleError) Error() string {
	chain := append(append([]string(nil), e.Chain...), e.Path)
	switch e.Kind {
	case CycleExtend:
		return fmt.Sprintf("recursive extending %q (%s)", e.Path, strings.Join(chain, " -> "))
	default:
		return fmt.Sprintf("recursive inclusion %q (%s)", e.Path, strings.Join(chain, " -> "))
	}
}

// Unwrap lets errors.Is match ErrRecursiveExtend or ErrRecursiveInclude.
func (e *CycleError) Unwrap() error {
	if e.Kind == CycleExtend {
		return ErrRecursiveExtend
	}
	return ErrRecursiveInclude
}
