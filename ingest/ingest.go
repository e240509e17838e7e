// Package ingest buffers points and commits them to a backend in batches.
package ingest

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/shallowclouds/unitsdb/backend"
	"github.com/shallowclouds/unitsdb/codec"
	"github.com/shallowclouds/unitsdb/metric"
)

// Backend is the connector the ingester commits through. *backend.Client
// implements it; tests substitute fakes.
type Backend interface {
	Kind() backend.Kind
	Send(payload string) backend.SendResult
}

// Stats accumulates commit counters across the lifetime of one ingester.
type Stats struct {
	// Commits counts every commit attempt, failed ones included.
	Commits int
	// Successes counts commits the backend accepted.
	Successes int
	// Points and Values count data actually accepted by the backend.
	Points int
	Values int
	// Elapsed is total wall time spent inside network calls.
	Elapsed time.Duration
}

// CommitReport describes the outcome of a single commit. Commits are
// all-or-nothing at the batch level: Points is either 0 or Attempted.
type CommitReport struct {
	Attempted  int
	Points     int
	Values     int
	Elapsed    time.Duration
	Throughput float64
	Err        error
}

// Ingester accumulates appended points and flushes them as one write per
// commit. Not safe for concurrent use; callers needing concurrency should
// use one ingester per goroutine.
type Ingester struct {
	backend Backend
	encode  codec.Encoder
	batch   int
	buffer  []metric.Point
	stats   Stats
}

// NewIngester creates an ingester writing through the given backend.
// A positive batch makes Append trigger a synchronous commit whenever the
// buffer reaches that many points; zero means commits are manual only.
func NewIngester(b Backend, batch int) (*Ingester, error) {
	if b == nil {
		return nil, errors.New("nil backend client")
	}
	if batch < 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batch)
	}
	logrus.WithFields(logrus.Fields{
		"kind":  b.Kind(),
		"batch": batch,
	}).Debug("ingester instantiated")
	return &Ingester{
		backend: b,
		encode:  codec.ForKind(b.Kind()),
		batch:   batch,
	}, nil
}

// Append validates the point and stores a copy in the buffer. A zero
// timestamp is replaced with the current wall-clock time. In batch mode
// the triggered commit runs before Append returns, so the buffer never
// exceeds the threshold.
func (ing *Ingester) Append(p metric.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().UnixNano() / int64(time.Millisecond)
	}
	ing.buffer = append(ing.buffer, p.Copy())
	if ing.batch > 0 && len(ing.buffer) >= ing.batch {
		ing.Commit()
	}
	return nil
}

// Len returns the number of buffered, not yet committed points.
func (ing *Ingester) Len() int {
	return len(ing.buffer)
}

// Payload renders the current buffer in the backend's wire format without
// clearing it and without touching the network.
func (ing *Ingester) Payload() string {
	return ing.encode(ing.buffer)
}

// Commit serializes the buffer, performs one write, and updates the
// cumulative stats. The buffer is cleared whether the write succeeds or
// not: a failed batch is dropped, and resubmitting it is the caller's
// decision. An empty buffer is a no-op.
func (ing *Ingester) Commit() CommitReport {
	if len(ing.buffer) == 0 {
		return CommitReport{}
	}

	points := len(ing.buffer)
	values := 0
	for _, p := range ing.buffer {
		values += len(p.Fields)
	}
	payload := ing.encode(ing.buffer)
	ing.buffer = ing.buffer[:0]

	ing.stats.Commits++
	result := ing.backend.Send(payload)
	ing.stats.Elapsed += result.Elapsed

	report := CommitReport{
		Attempted: points,
		Elapsed:   result.Elapsed,
		Err:       result.Err,
	}
	if !result.Success {
		logrus.WithError(result.Err).WithFields(logrus.Fields{
			"commit": ing.stats.Commits,
			"points": points,
		}).Warn("commit failed, buffered points dropped")
		return report
	}

	ing.stats.Successes++
	ing.stats.Points += points
	ing.stats.Values += values
	report.Points = points
	report.Values = values
	if result.Elapsed > 0 {
		report.Throughput = float64(points) / result.Elapsed.Seconds()
	}
	logrus.WithFields(logrus.Fields{
		"commit":       ing.stats.Commits,
		"points":       points,
		"total_points": ing.stats.Points,
		"elapsed":      result.Elapsed,
	}).Info("commit sent")
	return report
}

// Stats returns a copy of the cumulative counters.
func (ing *Ingester) Stats() Stats {
	return ing.stats
}

// Report renders the cumulative stats as a one-line summary.
func (ing *Ingester) Report() string {
	s := ing.stats
	if s.Elapsed > 0 {
		return fmt.Sprintf("%d commits (%d successes), %d points, %d values in %.2f s @ %.1f values/s",
			s.Commits, s.Successes, s.Points, s.Values,
			s.Elapsed.Seconds(), float64(s.Values)/s.Elapsed.Seconds())
	}
	return fmt.Sprintf("%d commits (%d successes), %d points, %d values",
		s.Commits, s.Successes, s.Points, s.Values)
}
