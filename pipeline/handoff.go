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

package pipeline

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/ccscheck/ccs"
)

// handoff connects the workers to the consumer. put is called by many
// workers, next by the single consumer. close is called exactly once, after
// the last put.
type handoff interface {
	// put hands over the result for the read with sequence number seq. A nil
	// record marks a read that produced no record.
	put(seq int, rec *ccs.Record)
	// next blocks until a record is available. It returns false once the
	// queue is closed and empty.
	next() (*ccs.Record, bool)
	close()
}

// chanHandoff delivers records in completion order.
type chanHandoff struct {
	ch chan *ccs.Record
}

func newChanHandoff(size int) *chanHandoff {
	return &chanHandoff{ch: make(chan *ccs.Record, size)}
}

func (h *chanHandoff) put(_ int, rec *ccs.Record) {
	if rec != nil {
		h.ch <- rec
	}
}

func (h *chanHandoff) next() (*ccs.Record, bool) {
	rec, ok := <-h.ch
	return rec, ok
}

func (h *chanHandoff) close() { close(h.ch) }

// orderedHandoff delivers records in source order. Every sequence number
// must be put exactly once, including the ones for failed reads, or next
// stalls at the gap.
type orderedHandoff struct {
	q *syncqueue.OrderedQueue
}

// slot wraps a record so that a failed read still occupies its position.
type slot struct {
	rec *ccs.Record
}

func newOrderedHandoff(size int) *orderedHandoff {
	return &orderedHandoff{q: syncqueue.NewOrderedQueue(size)}
}

func (h *orderedHandoff) put(seq int, rec *ccs.Record) {
	if err := h.q.Insert(seq, slot{rec}); err != nil {
		// Insert only fails once the queue is closed, which happens after the
		// last put.
		log.Panicf("ordered hand-off: insert %d: %v", seq, err)
	}
}

func (h *orderedHandoff) next() (*ccs.Record, bool) {
	for {
		val, ok, err := h.q.Next()
		if err != nil {
			log.Panicf("ordered hand-off: %v", err)
		}
		if !ok {
			return nil, false
		}
		if s := val.(slot); s.rec != nil {
			return s.rec, true
		}
	}
}

func (h *orderedHandoff) close() {
	if err := h.q.Close(nil); err != nil {
		log.Panicf("ordered hand-off: close: %v", err)
	}
}
