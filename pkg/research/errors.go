package research

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidBudget is returned when breadth or depth is negative.
var ErrInvalidBudget = errors.New("breadth and depth must be non-negative")

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureProvider
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureProvider:
		return "provider_error"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// BranchError records why one branch contributed nothing. It never leaves
// the branch boundary except through logs and tests.
type BranchError struct {
	Kind  FailureKind
	Stage string
	Query string
	Err   error
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("branch %q %s failed (%s): %v", e.Query, e.Stage, e.Kind, e.Err)
}

func (e *BranchError) Unwrap() error {
	return e.Err
}

func newBranchError(stage, query string, err error) *BranchError {
	return &BranchError{
		Kind:  classify(err),
		Stage: stage,
		Query: query,
		Err:   err,
	}
}

func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureProvider
}

// branchOutcome is either a result or a tagged failure.
type branchOutcome struct {
	result ResearchResult
	err    *BranchError
}

func (o branchOutcome) failure() FailureKind {
	if o.err == nil {
		return FailureNone
	}
	return o.err.Kind
}
