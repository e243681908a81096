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
	"math"

	"blainsmith.com/go/seahash"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/ccscheck/ccs"
)

type sampler struct {
	Iterator
	threshold uint64
}

// NewSampler wraps iter so that only a fraction rate of its reads are
// yielded. A read is kept iff seahash(read.ID) falls below rate * 2^64, so
// the selection is stable across runs and independent of read order.
func NewSampler(iter Iterator, rate float64) Iterator {
	if rate >= 1 {
		return iter
	}
	if rate < 0 {
		rate = 0
	}
	return &sampler{Iterator: iter, threshold: uint64(rate * math.MaxUint64)}
}

// Keep reports whether a read with the given ID passes a sampler with this
// rate.
func Keep(id string, rate float64) bool {
	if rate >= 1 {
		return true
	}
	return seahash.Sum64(gunsafe.StringToBytes(id)) < uint64(rate*math.MaxUint64)
}

func (s *sampler) Scan() bool {
	for s.Iterator.Scan() {
		if s.keep(s.Iterator.Read()) {
			return true
		}
	}
	return false
}

func (s *sampler) keep(r *ccs.Read) bool {
	return seahash.Sum64(gunsafe.StringToBytes(r.ID)) < s.threshold
}
