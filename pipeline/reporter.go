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
	"sync/atomic"

	"github.com/grailbio/base/log"
)

// FailureReporter receives per-read failures. It is called concurrently
// from the workers.
type FailureReporter interface {
	ReadFailed(id string, err error)
}

// LogReporter logs each failure and counts them.
type LogReporter struct {
	n int64
}

// ReadFailed implements FailureReporter.
func (r *LogReporter) ReadFailed(id string, err error) {
	atomic.AddInt64(&r.n, 1)
	log.Printf("CCS READ FAIL: %s: %v", id, err)
}

// Count returns the number of failures reported so far.
func (r *LogReporter) Count() int64 { return atomic.LoadInt64(&r.n) }

// MultiReporter forwards each failure to every reporter in order.
type MultiReporter []FailureReporter

// ReadFailed implements FailureReporter.
func (m MultiReporter) ReadFailed(id string, err error) {
	for _, r := range m {
		r.ReadFailed(id, err)
	}
}
