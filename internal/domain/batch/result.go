// Package batch describes the outcome of a multi-batch upsert run.
package batch

import "errors"

// Status is the processing outcome of a single batch.
type Status string

// Batch status values.
const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one batch covering chunks [Start, End).
type Result struct {
	index  int
	start  int
	end    int
	status Status
	ids    []string
	err    error
}

// NewOK creates a successful batch result with the written record IDs.
func NewOK(index, start, end int, ids []string) Result {
	return Result{index: index, start: start, end: end, status: StatusOK, ids: ids}
}

// NewError creates a failed batch result.
func NewError(index, start, end int, err error) Result {
	return Result{index: index, start: start, end: end, status: StatusError, err: err}
}

// NewSkipped creates a result for a batch that was never dispatched.
func NewSkipped(index, start, end int) Result {
	return Result{index: index, start: start, end: end, status: StatusSkipped}
}

// Index returns the batch number.
func (r Result) Index() int { return r.index }

// Start returns the first chunk sequence of the batch.
func (r Result) Start() int { return r.start }

// End returns the exclusive upper chunk bound.
func (r Result) End() int { return r.end }

// Size returns the number of chunks in the batch.
func (r Result) Size() int { return r.end - r.start }

// Status returns the processing outcome.
func (r Result) Status() Status { return r.status }

// IDs returns the identifiers written by a successful batch.
func (r Result) IDs() []string { return r.ids }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Report collects the per-batch results of one ingestion run, ordered by batch index.
type Report struct {
	Index   string
	Chunks  int
	Batches []Result
}

// Count returns how many batches ended with the given status.
func (r Report) Count(s Status) int {
	n := 0
	for _, b := range r.Batches {
		if b.status == s {
			n++
		}
	}
	return n
}

// Upserted returns the number of records written.
func (r Report) Upserted() int {
	n := 0
	for _, b := range r.Batches {
		if b.status == StatusOK {
			n += len(b.ids)
		}
	}
	return n
}

// Err joins the errors of all failed batches. Nil when none failed.
func (r Report) Err() error {
	var errs []error
	for _, b := range r.Batches {
		if b.err != nil {
			errs = append(errs, b.err)
		}
	}
	return errors.Join(errs...)
}
