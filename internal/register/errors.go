package register

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumns is returned when the register lacks a required column.
var ErrMissingColumns = errors.New("PO register is missing required columns")

// ColumnError lists the required columns absent from a register.
type ColumnError struct {
	Path    string
	Sheet   string
	Missing []string
}

// Error implements the error interface.
func (e *ColumnError) Error() string {
	where := e.Path
	if e.Sheet != "" {
		where = fmt.Sprintf("%s (sheet %s)", e.Path, e.Sheet)
	}
	return fmt.Sprintf("register: %s: missing %s", where, strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrMissingColumns) match.
func (e *ColumnError) Is(target error) bool {
	return target == ErrMissingColumns
}
