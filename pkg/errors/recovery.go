package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// PanicError is a panic caught by Recover at a public entry point such as
// FoldTrainer.Run or Service.Predict.
type PanicError struct {
	Op    string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
}

// Recover turns a panic into an error on the named return of the deferring
// function:
//
//	func (s *Service) Predict(ctx context.Context, req Request) (resp *Response, err error) {
//	    defer errors.Recover(&err, "Service.Predict")
//
// When err is already set the panic message is wrapped around it so neither
// cause is lost.
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if *err != nil {
		*err = errors.Wrapf(*err, "panic in %s: %v", op, r)
		return
	}
	*err = &PanicError{Op: op, Value: r, Stack: string(debug.Stack())}
}
