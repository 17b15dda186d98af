package godispatch

import (
	"fmt"
	"io"
	"regexp"

	"github.com/pkg/errors"
)

//DispatchError error interface for godispatch
type DispatchError interface {
	Code() string
	Message() string
	Error() string
	StackTrace() errors.StackTrace
}

type dispatchErr struct {
	code string
	msg  string
	err  error
}

func (err *dispatchErr) Code() string {
	return err.code
}

func (err *dispatchErr) Message() string {
	return err.msg
}

func (err *dispatchErr) Error() string {
	return fmt.Sprintf("dispatch err, code:%v, message:%v", err.code, err.msg)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

//StackTrace return the deepest stack trace recorded in the error chain
func (err *dispatchErr) StackTrace() errors.StackTrace {
	var st errors.StackTrace
	cur := err.err
	for cur != nil {
		if t, ok := cur.(stackTracer); ok {
			st = t.StackTrace()
		}
		u, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = u.Unwrap()
	}
	return st
}

func (err *dispatchErr) Unwrap() error {
	return err.err
}

func (err *dispatchErr) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "dispatch err, code:%v, message:%v\n%+v", err.code, err.msg, err.err)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, err.Error())
	}
}

var verbRegexp = regexp.MustCompile(`%[^%]`)

//NewDispatchError create a DispatchError from a message with optional format
//arguments. If the last argument is an error beyond what the format string
//consumes, it is kept as the cause and its stack is preserved.
func NewDispatchError(code string, msg string, args ...interface{}) DispatchError {
	if len(args) == 1 {
		if e, ok := args[0].(DispatchError); ok && !verbRegexp.MatchString(msg) {
			return e
		}
	}
	var cause error
	if n := len(args); n > 0 {
		if er, ok := args[n-1].(error); ok && len(verbRegexp.FindAllString(msg, -1)) < n {
			cause, args = er, args[:n-1]
		}
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	if cause == nil {
		cause = errors.New(msg)
	} else {
		cause = errors.WithMessage(errors.WithStack(cause), msg)
	}
	return &dispatchErr{code: code, msg: msg, err: cause}
}

const (
	//ErrCodeInput the work item list is missing or unreadable, fatal before any batch starts
	ErrCodeInput = "input"
	//ErrCodeSubprocess the external command exited non-zero or wrote to stderr, fatal for its batch only
	ErrCodeSubprocess = "subprocess"
	//ErrCodeIO a temp file or aggregate destination could not be written
	ErrCodeIO = "io"
	//ErrCodeDbFail persisting dispatch history failed
	ErrCodeDbFail = "db_fail"
	//ErrCodeConcurrency optimistic version conflict while persisting history
	ErrCodeConcurrency = "concurrency"
	//ErrCodeGeneral any other failure
	ErrCodeGeneral = "general"
)
