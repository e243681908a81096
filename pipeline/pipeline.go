// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pipeline runs CCS reads through an optional transform and fans the
// results out to a list of sinks.
//
// A feeder goroutine scans the read source and hands reads to a pool of
// workers. Each worker aligns its read, calls variants and pushes the
// resulting record onto a bounded hand-off queue. A single consumer, running
// on the goroutine that called Run, pulls records off the queue and passes
// each one to every sink, in order, before pulling the next one. Sinks are
// therefore never called concurrently.
//
// A failure while processing one read is reported through a
// FailureReporter and the read is dropped; it never stops the run. A
// failure of the read source stops feeding, lets the records already in
// flight drain, and fails the run. Sinks are finalized in every case.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/ccscheck/align"
	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/ccscheck/readsource"
)

// Sink consumes processed records. Consume is called once per record, from
// a single goroutine. Finalize is called exactly once, after the last
// Consume, even if Consume failed.
type Sink interface {
	Consume(rec *ccs.Record) error
	Finalize() error
}

// VariantCaller calls variants on one alignment. Positions are relative to
// the start of the alignment.
type VariantCaller interface {
	Call(aln *ccs.Alignment) ([]ccs.Variant, error)
}

// Transform is the per-read work done by the workers. A nil Transform, or
// one without an Aligner, passes reads through unchanged. Without a Caller,
// aligned records carry no variants.
type Transform struct {
	Aligner align.Aligner
	Caller  VariantCaller
}

func (t *Transform) enabled() bool { return t != nil && t.Aligner != nil }

// SinkErrorPolicy decides what happens when a sink's Consume fails.
type SinkErrorPolicy int

const (
	// IsolateSinkErrors logs and counts the error, and keeps dispatching to
	// every sink, including the one that failed.
	IsolateSinkErrors SinkErrorPolicy = iota
	// DisableFailingSink stops dispatching to a sink after its first error.
	// The sink is still finalized.
	DisableFailingSink
	// AbortOnSinkError stops dispatching to all sinks after the first error
	// and fails the run. Queued records are discarded; all sinks are still
	// finalized.
	AbortOnSinkError
)

var policyNames = [...]string{
	IsolateSinkErrors:  "isolate",
	DisableFailingSink: "disable",
	AbortOnSinkError:   "abort",
}

func (p SinkErrorPolicy) String() string {
	if int(p) >= 0 && int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParseSinkErrorPolicy parses the String form of a policy.
func ParseSinkErrorPolicy(s string) (SinkErrorPolicy, error) {
	for i, name := range policyNames {
		if name == s {
			return SinkErrorPolicy(i), nil
		}
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown sink error policy %q, want one of isolate, disable, abort", s))
}

// Opts configures an Engine.
type Opts struct {
	// Parallelism is the number of transform workers. Zero means
	// runtime.NumCPU().
	Parallelism int
	// QueueSize bounds the number of processed records waiting for the
	// consumer. Zero means 2*Parallelism.
	QueueSize int
	// PreserveOrder delivers records to the sinks in source order instead of
	// completion order.
	PreserveOrder bool
	// SinkErrorPolicy applies to errors returned by Sink.Consume.
	SinkErrorPolicy SinkErrorPolicy
	// ProgressInterval logs progress every so many delivered records. Zero
	// disables progress logging.
	ProgressInterval int
	// BatchSize is the largest number of queued reads a worker hands to an
	// align.BatchAligner in one call. Zero or one aligns reads one at a time.
	BatchSize int
}

// DefaultOpts is the default engine configuration.
var DefaultOpts = Opts{
	ProgressInterval: 100000,
}

// Stats summarizes a run.
type Stats struct {
	// Reads is the number of reads taken from the source.
	Reads int64
	// Delivered is the number of records passed to the sinks.
	Delivered int64
	// ReadFailures is the number of reads dropped because their transform
	// failed.
	ReadFailures int64
	// SinkErrors counts failed Consume calls, plus failed Finalize calls.
	SinkErrors int64
	Duration   time.Duration
}

// Engine runs the pipeline once.
type Engine struct {
	transform *Transform
	reporter  FailureReporter
	opts      Opts

	started int32
	sm      stateMachine

	// failure holds the first pipeline-level error.
	failure errors.Once
	// stopped is closed to stop the feeder early.
	stopped  chan struct{}
	stopOnce sync.Once

	reads, readFailures int64
}

// New creates an Engine. A nil reporter logs failures.
func New(transform *Transform, reporter FailureReporter, opts Opts) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 2 * opts.Parallelism
	}
	if reporter == nil {
		reporter = &LogReporter{}
	}
	return &Engine{
		transform: transform,
		reporter:  reporter,
		opts:      opts,
		stopped:   make(chan struct{}),
	}
}

// State returns the current state. It may be called concurrently with Run.
func (e *Engine) State() State { return e.sm.get() }

func (e *Engine) stop() {
	e.stopOnce.Do(func() { close(e.stopped) })
}

// fail records a pipeline-level failure and stops feeding.
func (e *Engine) fail(err error) {
	e.failure.Set(err)
	e.stop()
}

type job struct {
	seq  int
	read *ccs.Read
}

// Run reads src to the end, or until ctx is canceled or the run fails, and
// dispatches the records to sinks. It does not close src.
//
// Run returns the pipeline-level failure if there was one, else the error
// that aborted dispatch under AbortOnSinkError, else the Finalize errors.
// Per-read failures and isolated sink errors are only counted in Stats.
func (e *Engine) Run(ctx context.Context, src readsource.Iterator, sinks []Sink) (Stats, error) {
	if !atomic.CompareAndSwapInt32(&e.started, 0, 1) {
		return Stats{}, errors.E(errors.Invalid, "pipeline: Run called twice")
	}
	start := time.Now()
	e.sm.transition(Idle, Running)

	var q handoff
	if e.opts.PreserveOrder {
		q = newOrderedHandoff(e.opts.QueueSize)
	} else {
		q = newChanHandoff(e.opts.QueueSize)
	}
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		e.produce(ctx, src, q)
	}()

	c := newConsumer(sinks, e.opts)
	for {
		rec, ok := q.next()
		if !ok {
			break
		}
		if c.aborted() {
			continue
		}
		c.dispatch(rec)
		if c.aborted() {
			// Stop producing, but keep draining so no worker blocks.
			e.stop()
		}
	}
	<-producerDone

	failed := false
	if err := e.failure.Err(); err != nil || c.abortErr != nil {
		e.sm.transition(Draining, Failed)
		failed = true
	} else {
		e.sm.transition(Draining, Finalizing)
	}
	finalizeErr := c.finalize()
	if !failed {
		e.sm.transition(Finalizing, Done)
	}

	stats := Stats{
		Reads:        atomic.LoadInt64(&e.reads),
		Delivered:    c.delivered,
		ReadFailures: atomic.LoadInt64(&e.readFailures),
		SinkErrors:   c.sinkErrors,
		Duration:     time.Since(start),
	}
	log.Printf("pipeline: %v after %v: %d reads, %d delivered, %d read failures, %d sink errors",
		e.State(), stats.Duration, stats.Reads, stats.Delivered, stats.ReadFailures, stats.SinkErrors)
	switch {
	case e.failure.Err() != nil:
		return stats, e.failure.Err()
	case c.abortErr != nil:
		return stats, c.abortErr
	}
	return stats, finalizeErr
}

// produce feeds reads to the workers and closes q when every worker has
// exited.
func (e *Engine) produce(ctx context.Context, src readsource.Iterator, q handoff) {
	jobs := make(chan job, e.opts.Parallelism)
	go func() {
		defer close(jobs)
		e.feed(ctx, src, jobs)
	}()
	batchSize := e.opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	err := traverse.Each(e.opts.Parallelism, func(_ int) error {
		batch := make([]job, 0, batchSize)
		for j := range jobs {
			batch = fillBatch(jobs, append(batch[:0], j))
			recs, errs := e.processBatch(batch)
			for i, j := range batch {
				if err := errs[i]; err != nil {
					atomic.AddInt64(&e.readFailures, 1)
					e.reporter.ReadFailed(j.read.ID, err)
					if align.IsMissingDependency(err) {
						// Every other read would fail the same way.
						e.fail(err)
					}
				}
				// Puts are in increasing seq order, so the ordered hand-off
				// can always accept the smallest outstanding one.
				q.put(j.seq, recs[i])
			}
		}
		return nil
	})
	if err != nil {
		e.fail(err)
	}
	q.close()
	e.sm.transition(Running, Draining)
}

func (e *Engine) feed(ctx context.Context, src readsource.Iterator, jobs chan<- job) {
	seq := 0
	for src.Scan() {
		j := job{seq: seq, read: src.Read()}
		select {
		case jobs <- j:
		case <-e.stopped:
			return
		case <-ctx.Done():
			e.fail(errors.E(errors.Canceled, "pipeline canceled", ctx.Err()))
			return
		}
		atomic.AddInt64(&e.reads, 1)
		seq++
		select {
		case <-e.stopped:
			return
		case <-ctx.Done():
			e.fail(errors.E(errors.Canceled, "pipeline canceled", ctx.Err()))
			return
		default:
		}
	}
	if err := src.Err(); err != nil {
		e.fail(errors.E("read source", err))
	}
}

// fillBatch adds jobs that are already waiting to batch, without blocking,
// until it is full.
func fillBatch(jobs <-chan job, batch []job) []job {
	for len(batch) < cap(batch) {
		select {
		case j, ok := <-jobs:
			if !ok {
				return batch
			}
			batch = append(batch, j)
		default:
			return batch
		}
	}
	return batch
}

// processBatch runs the transform on every read of batch. It uses one
// AlignBatch call when the aligner supports it; a failure of that call fails
// every read of the batch.
func (e *Engine) processBatch(batch []job) ([]*ccs.Record, []error) {
	recs := make([]*ccs.Record, len(batch))
	errs := make([]error, len(batch))
	ba, ok := e.batchAligner()
	if !ok || len(batch) == 1 {
		for i, j := range batch {
			recs[i], errs[i] = e.process(j.read)
		}
		return recs, errs
	}
	reads := make([]*ccs.Read, len(batch))
	for i, j := range batch {
		reads[i] = j.read
	}
	var alns []*ccs.Alignment
	err := safeCall(func() (err error) {
		alns, err = ba.AlignBatch(reads)
		return err
	})
	if err == nil && len(alns) != len(reads) {
		err = errors.E(fmt.Sprintf("aligner returned %d alignments for %d reads", len(alns), len(reads)))
	}
	if err != nil {
		for i := range errs {
			errs[i] = errors.E("align", err)
		}
		return recs, errs
	}
	for i, read := range reads {
		recs[i], errs[i] = e.annotate(read, alns[i])
	}
	return recs, errs
}

func (e *Engine) batchAligner() (align.BatchAligner, bool) {
	if !e.transform.enabled() {
		return nil, false
	}
	ba, ok := e.transform.Aligner.(align.BatchAligner)
	return ba, ok
}

// process runs the transform on one read. A panic is returned as an error.
func (e *Engine) process(read *ccs.Read) (rec *ccs.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.E(fmt.Sprintf("panic: %v", r))
		}
	}()
	if !e.transform.enabled() {
		return ccs.NewRecord(read), nil
	}
	aln, err := e.transform.Aligner.Align(read)
	if err != nil {
		return nil, errors.E("align", err)
	}
	return e.annotate(read, aln)
}

// annotate calls variants on aln and builds the record for read. A panic is
// returned as an error.
func (e *Engine) annotate(read *ccs.Read, aln *ccs.Alignment) (rec *ccs.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.E(fmt.Sprintf("panic: %v", r))
		}
	}()
	if aln == nil {
		return ccs.NewRecord(read), nil
	}
	var variants []ccs.Variant
	if e.transform.Caller != nil {
		if variants, err = e.transform.Caller.Call(aln); err != nil {
			return nil, errors.E("call variants", err)
		}
	}
	return ccs.NewAlignedRecord(read, aln, variants), nil
}

// consumer dispatches records to the sinks. It is used by one goroutine.
type consumer struct {
	sinks    []Sink
	opts     Opts
	disabled []bool

	delivered  int64
	sinkErrors int64
	abortErr   error
}

func newConsumer(sinks []Sink, opts Opts) *consumer {
	return &consumer{sinks: sinks, opts: opts, disabled: make([]bool, len(sinks))}
}

func (c *consumer) aborted() bool { return c.abortErr != nil }

func (c *consumer) dispatch(rec *ccs.Record) {
	for i, s := range c.sinks {
		if c.disabled[i] {
			continue
		}
		err := safeCall(func() error { return s.Consume(rec) })
		if err == nil {
			continue
		}
		c.sinkErrors++
		log.Error.Printf("sink %d (%T): consume %s: %v", i, s, rec.Read.ID, err)
		switch c.opts.SinkErrorPolicy {
		case DisableFailingSink:
			log.Error.Printf("sink %d (%T): disabled", i, s)
			c.disabled[i] = true
		case AbortOnSinkError:
			c.abortErr = errors.E(fmt.Sprintf("sink %d (%T)", i, s), err)
			c.delivered++
			return
		}
	}
	c.delivered++
	if n := c.opts.ProgressInterval; n > 0 && c.delivered%int64(n) == 0 {
		log.Printf("pipeline: %d records delivered", c.delivered)
	}
}

// finalize calls Finalize on every sink, in order, and combines the errors.
func (c *consumer) finalize() error {
	errs := multierror.NewMultiError(len(c.sinks) + 1)
	for i, s := range c.sinks {
		if err := safeCall(s.Finalize); err != nil {
			c.sinkErrors++
			log.Error.Printf("sink %d (%T): finalize: %v", i, s, err)
			errs.Add(errors.E(fmt.Sprintf("finalize sink %d (%T)", i, s), err))
		}
	}
	return errs.Err()
}

// safeCall invokes fn, turning a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.E(fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn()
}
