// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors defines the error handling used throughout cachefs: a
// single Error type carrying a path, an operation, a Kind and a wrapped
// cause, matching the stable errno contract of the client API.
package errors

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
)

// Error is the type that implements the error interface.
// It contains a number of fields, each of different type.
// An Error value may leave some values unset.
type Error struct {
	// Path is the logical path of the item being accessed.
	Path string
	// Op is the operation being performed, usually the name of the
	// method being invoked (open, read, write, ...).
	Op string
	// Kind is the class of error. It maps directly onto one of the
	// stable errno values in the client API.
	Kind Kind
	// The underlying error that triggered this one, if any.
	Err error
}

var (
	_       error = (*Error)(nil)
	zeroErr Error
)

// Separator is the string used to separate nested errors. Nested errors
// are indented on a new line by default to make them easier on the eye.
var Separator = ":\n\t"

// Kind defines the kind of error this is, corresponding 1:1 to the errno
// contract in the client API (spec.md §6).
type Kind uint8

// Kinds of errors. The zero value is Other.
const (
	Other      Kind = iota // Unclassified error.
	Permission             // EPERM: I/O or local system failure.
	NotExist               // ENOENT: path does not exist at the origin.
	Exist                  // EEXIST: CREATE_NEW on a path that exists.
	IsDir                  // EISDIR: operation not valid on a directory.
	Invalid                // EINVAL: bad argument (whence, path escape, ...).
	BadHandle              // EBADF: unknown, wrong-mode, or stale handle.
	Busy                   // EBUSY: cache capacity could not be satisfied.
	NoMemory               // ENOMEM: local allocation failure.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Permission:
		return "permission denied"
	case NotExist:
		return "no such file"
	case Exist:
		return "file already exists"
	case IsDir:
		return "is a directory"
	case Invalid:
		return "invalid argument"
	case BadHandle:
		return "bad file handle"
	case Busy:
		return "cache busy"
	case NoMemory:
		return "out of memory"
	}
	return "unknown error kind"
}

// Errno is the stable negative integer contract of spec.md §6. Kinds that
// have no client-visible errno (Other) return 0, the sentinel for
// "not an errno-bearing failure".
func (k Kind) Errno() int {
	switch k {
	case Permission:
		return -1
	case NotExist:
		return -2
	case Exist:
		return -3
	case IsDir:
		return -4
	case Invalid:
		return -5
	case BadHandle:
		return -6
	case Busy:
		return -7
	case NoMemory:
		return -8
	}
	return 0
}

// E builds an error value from its arguments.
// The type of each argument determines its meaning.
// If more than one argument of a given type is presented,
// only the last one is recorded.
//
// The types are:
//	string
//		The path of the item being accessed, if it contains a
//		'/', otherwise the operation being performed.
//	Kind
//		The class of error.
//	error
//		The underlying error that triggered this one.
//
// If Kind is not specified or Other, it is set to the Kind of the
// underlying error, if any.
func E(args ...interface{}) error {
	if len(args) == 0 {
		return nil
	}
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			if strings.Contains(arg, "/") {
				e.Path = arg
			} else {
				e.Op = arg
			}
		case Kind:
			e.Kind = arg
		case *Error:
			errCopy := *arg
			e.Err = &errCopy
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			return Errorf("errors.E: bad call from %s:%d: %v", file, line, args)
		}
	}
	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}
	// The previous error was also one of ours. Suppress duplication so
	// the message doesn't repeat the same path or kind twice.
	if prev.Path == e.Path {
		prev.Path = ""
	}
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}
	return e
}

func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Path != "" {
		b.WriteString(e.Path)
	}
	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(e.Op)
	}
	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if prevErr, ok := e.Err.(*Error); ok {
			if *prevErr != zeroErr {
				pad(b, Separator)
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// GetKind returns the Kind of err if it is (or wraps) an *Error, and Other
// otherwise.
func GetKind(err error) Kind {
	e, ok := err.(*Error)
	if !ok {
		return Other
	}
	if e.Kind != Other {
		return e.Kind
	}
	return GetKind(e.Err)
}

// Str returns an error that formats as the given text. It is intended to
// be used as the error-typed argument to the E function.
func Str(text string) error {
	return &errorString{text}
}

// errorString is a trivial implementation of error.
type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf is equivalent to fmt.Errorf, but returns an error whose type is
// this package's, so that Is/As-style callers need only import errors once.
func Errorf(format string, args ...interface{}) error {
	return &errorString{fmt.Sprintf(format, args...)}
}
