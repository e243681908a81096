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

package sinks

import (
	"context"
	"strings"
	"sync"

	"github.com/grailbio/base/log"
)

// FailureLog records reads whose processing failed, in failures.tsv. It
// implements pipeline.FailureReporter and may be called concurrently.
type FailureLog struct {
	mu  sync.Mutex
	t   *tsvFile
	n   int64
	err error
}

// NewFailureLog creates failures.tsv in dir.
func NewFailureLog(ctx context.Context, dir string, opts Opts) (*FailureLog, error) {
	t, err := createTSV(ctx, dir, FailuresFile, opts, "ID", "MESSAGE")
	if err != nil {
		return nil, err
	}
	return &FailureLog{t: t}, nil
}

var messageCleaner = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// ReadFailed implements pipeline.FailureReporter.
func (l *FailureLog) ReadFailed(id string, err error) {
	log.Printf("CCS READ FAIL: %s", id)
	log.Printf("%v", err)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.n++
	if l.err != nil || l.t.closed {
		return
	}
	l.t.w.WriteString(id)
	l.t.w.WriteString(messageCleaner.Replace(err.Error()))
	l.err = l.t.endLine()
}

// Count returns the number of failures reported.
func (l *FailureLog) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Close flushes and closes failures.tsv. It returns the first write error,
// if any.
func (l *FailureLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.t.close()
	if l.err != nil {
		return l.err
	}
	return err
}
