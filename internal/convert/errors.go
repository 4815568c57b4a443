package convert

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a track failed.
type FailureKind string

const (
	// malformed segment, packet or index data
	KindFormat FailureKind = "format"
	// missing or unreadable input, or an unavailable tool
	KindResource FailureKind = "resource"
	// the subtitle file could not be written
	KindOutput FailureKind = "output"
)

// TrackError is the failure of a single track.
type TrackError struct {
	Track string
	Kind  FailureKind
	Err   error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %s: %s error: %v", e.Track, e.Kind, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

// BatchError aggregates every failed track of a run.
type BatchError struct {
	Failed []*TrackError
}

func (e *BatchError) Error() string {
	first := e.Failed[0]
	if len(e.Failed) == 1 {
		return fmt.Sprintf("conversion of track %s failed (%s), see logs for more info", first.Track, first.Kind)
	}
	return fmt.Sprintf(
		"conversion of track %s and %d other tracks failed, see logs for more info",
		first.Track,
		len(e.Failed)-1,
	)
}

// Unwrap exposes the joined track errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}
