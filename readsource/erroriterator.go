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

type errorIterator struct {
	err error
}

func (i *errorIterator) Scan() bool      { return false }
func (i *errorIterator) Read() *ccs.Read { panic("shall not be called") }
func (i *errorIterator) Err() error      { return i.err }
func (i *errorIterator) Close() error    { return i.err }

// NewErrorIterator creates an Iterator that yields no read and returns "err"
// in Err and Close.
func NewErrorIterator(err error) Iterator {
	return &errorIterator{err: err}
}
