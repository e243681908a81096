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
	"fmt"
	"sync/atomic"

	"github.com/grailbio/base/log"
)

// State is the lifecycle state of an Engine.
type State int32

const (
	// Idle means Run has not been called.
	Idle State = iota
	// Running means reads are being transformed and dispatched.
	Running
	// Draining means the producer has finished and the consumer is
	// dispatching the records still queued.
	Draining
	// Finalizing means every record was dispatched and the sinks are being
	// finalized.
	Finalizing
	// Done means the run completed without a pipeline-level failure.
	Done
	// Failed means the read source failed, the run was canceled, or a sink
	// aborted the run. Sinks are still finalized after entering Failed.
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Running:    "running",
	Draining:   "draining",
	Finalizing: "finalizing",
	Done:       "done",
	Failed:     "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == Done || s == Failed }

// validTransitions lists, for each state, the states it may move to.
var validTransitions = map[State][]State{
	Idle:       {Running},
	Running:    {Draining, Failed},
	Draining:   {Finalizing, Failed},
	Finalizing: {Done},
}

type stateMachine struct {
	state int32
}

func (m *stateMachine) get() State { return State(atomic.LoadInt32(&m.state)) }

// transition moves from one state to another. It returns false, leaving the
// state untouched, if the machine is not in from. A move that is not in
// validTransitions is a programming error and panics.
func (m *stateMachine) transition(from, to State) bool {
	allowed := false
	for _, s := range validTransitions[from] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		log.Panicf("invalid state transition %v -> %v", from, to)
	}
	if !atomic.CompareAndSwapInt32(&m.state, int32(from), int32(to)) {
		return false
	}
	log.Debug.Printf("pipeline: %v -> %v", from, to)
	return true
}
