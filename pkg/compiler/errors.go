package compiler

import "fmt"

// CompileError is a syntax or resolution error located by (row, col), per
// spec §7. The compiler accumulates these rather than stopping at the
// first one, the same "accumulate in an errors slice" approach
// kristofer-smog's pkg/parser/parser.go uses — generalized to carry
// position instead of just a message string.
type CompileError struct {
	Row     int
	Col     int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Row, e.Col, e.Message)
}

// Errors wraps every CompileError collected during one Compile call.
type Errors struct {
	List []*CompileError
}

func (e *Errors) Error() string {
	if len(e.List) == 1 {
		return e.List[0].Error()
	}
	s := fmt.Sprintf("%d compile errors:", len(e.List))
	for _, ce := range e.List {
		s += "\n  " + ce.Error()
	}
	return s
}
