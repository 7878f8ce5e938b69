package service

import (
	"fmt"
	"runtime"
)

// ProcessingError describes something that went wrong while handling
// one frame. Fatal errors (bad stream data, undecodable headers)
// will fail again on retry; transient errors (socket hiccups, Redis
// timeouts) are worth retrying.
type ProcessingError struct {
	Series   int
	Frame    int
	ProcName string
	Message  string
	Source   string
	IsFatal  bool
}

// NewProcessingError returns a ProcessingError stamped with the
// caller's file and line.
func NewProcessingError(series, frame int, procName, message string, isFatal bool) *ProcessingError {
	_, filename, line, ok := runtime.Caller(1)
	source := "unknown:0"
	if ok {
		source = fmt.Sprintf("%s:%d", filename, line)
	}
	return &ProcessingError{
		Series:   series,
		Frame:    frame,
		ProcName: procName,
		Message:  message,
		Source:   source,
		IsFatal:  isFatal,
	}
}

func (e *ProcessingError) Error() string {
	severity := "non-fatal"
	if e.IsFatal {
		severity = "fatal"
	}
	return fmt.Sprintf("(series %d frame %d) (proc: %s) (message: %s) "+
		"(severity: %s) (source: %s)", e.Series, e.Frame, e.ProcName,
		e.Message, severity, e.Source)
}
