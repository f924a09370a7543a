package mstid

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// DataQuality means the input does not carry enough valid samples
	// (a beam, gate or the whole window is empty). Fatal to the run.
	DataQuality Kind = iota + 1
	// Configuration means a parameter is out of range or inconsistent
	// with the data. Fatal to the run.
	Configuration
	// Numerical means the arithmetic broke down: non-finite values or an
	// ill-conditioned cross-spectral matrix. Ill-conditioning at a single
	// frequency bin is recoverable; everything else is fatal.
	Numerical
)

func (k Kind) String() string {
	switch k {
	case DataQuality:
		return "data quality"
	case Configuration:
		return "configuration"
	case Numerical:
		return "numerical"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by every stage. Stage names the
// producing stage; Param names the offending parameter or dimension
// (e.g. "beam 7", "num_taps").
type Error struct {
	Kind  Kind
	Stage string
	Param string
	Err   error
}

func (e *Error) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error in %s: %v", e.Stage, e.Kind, e.Param, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, stage, param, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Stage: stage, Param: param, Err: fmt.Errorf(format, args...)}
}

// DataQualityf is shorthand for Errorf(DataQuality, ...).
func DataQualityf(stage, param, format string, args ...interface{}) *Error {
	return Errorf(DataQuality, stage, param, format, args...)
}

// Configf is shorthand for Errorf(Configuration, ...).
func Configf(stage, param, format string, args ...interface{}) *Error {
	return Errorf(Configuration, stage, param, format, args...)
}

// Numericalf is shorthand for Errorf(Numerical, ...).
func Numericalf(stage, param, format string, args ...interface{}) *Error {
	return Errorf(Numerical, stage, param, format, args...)
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
