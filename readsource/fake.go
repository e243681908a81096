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

package readsource

import (
	"github.com/grailbio/ccscheck/ccs"
)

// fakeIterator is only for unittests. It yields the given reads, then
// reports err.
type fakeIterator struct {
	reads  []*ccs.Read
	read   *ccs.Read
	err    error
	done   bool
	closed int
}

// NewFakeIterator creates an iterator that yields reads in order. Once they
// are exhausted, Scan returns false and Err returns err, which may be nil.
func NewFakeIterator(reads []*ccs.Read, err error) Iterator {
	return &fakeIterator{reads: reads, err: err}
}

func (i *fakeIterator) Scan() bool {
	if len(i.reads) == 0 {
		i.done = true
		return false
	}
	i.read = i.reads[0]
	i.reads = i.reads[1:]
	return true
}

func (i *fakeIterator) Read() *ccs.Read { return i.read }

func (i *fakeIterator) Err() error {
	if !i.done {
		return nil
	}
	return i.err
}

func (i *fakeIterator) Close() error {
	i.closed++
	return i.Err()
}
