package searcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/gokb/pkg/types"
)

// Failure tags why a retrieval path produced no results
type Failure int

const (
	FailureNone Failure = iota
	FailureNoEmbedding
	FailureUnavailable
	FailureTimeout
	FailureBackend
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureNoEmbedding:
		return "no_embedding"
	case FailureUnavailable:
		return "unavailable"
	case FailureTimeout:
		return "timeout"
	case FailureBackend:
		return "backend_error"
	default:
		return fmt.Sprintf("failure(%d)", int(f))
	}
}

// Outcome is the result of one retrieval attempt
type Outcome struct {
	Results []types.SearchResult
	Failure Failure
	Err     error
}

// Failed reports whether the attempt produced no usable results
func (o Outcome) Failed() bool {
	return o.Failure != FailureNone
}

// Describe formats the failure for logs and the unavailable result
func (o Outcome) Describe(path string) string {
	if o.Err == nil {
		return fmt.Sprintf("%s: %s", path, o.Failure)
	}
	return fmt.Sprintf("%s: %s: %v", path, o.Failure, o.Err)
}

func failed(f Failure, err error) Outcome {
	return Outcome{Failure: f, Err: err}
}

// classify maps a backend error to its failure tag
func classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrNoEmbedding):
		return FailureNoEmbedding
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, types.ErrIndexUnavailable):
		return FailureUnavailable
	default:
		return FailureBackend
	}
}
