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

package ccscheck

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/ccscheck/align"
)

// Category groups run failures by what the user has to fix.
type Category int

const (
	// Unexpected is an internal or unclassified failure.
	Unexpected Category = iota
	// BadInput means the arguments or the input files are wrong.
	BadInput
	// BadEnvironment means a program or library the run depends on could
	// not be found.
	BadEnvironment
)

// Classify returns the category of an error returned by Run.
func Classify(err error) Category {
	switch {
	case align.IsMissingDependency(err):
		return BadEnvironment
	case errors.Is(errors.Invalid, err), errors.Is(errors.NotExist, err), errors.Is(errors.Exists, err):
		return BadInput
	}
	return Unexpected
}

// ExitCode is the process exit status for the category.
func (c Category) ExitCode() int {
	switch c {
	case BadInput:
		return 2
	case BadEnvironment:
		return 3
	}
	return 1
}

func (c Category) String() string {
	switch c {
	case BadInput:
		return "bad input"
	case BadEnvironment:
		return "bad environment"
	}
	return "unexpected error"
}

// Hint is advice printed with the error.
func (c Category) Hint() string {
	switch c {
	case BadInput:
		return "check the arguments and the input files"
	case BadEnvironment:
		return "a required program or library was not found; install it or add its folder to $PATH"
	}
	return "please report this error"
}
