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

package main

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestPositionalArgs(t *testing.T) {
	for _, h := range []string{"h", "help", "?", "-h"} {
		_, _, _, help, err := positionalArgs([]string{h})
		expect.True(t, help, h)
		expect.NoError(t, err)
	}
	in, out, ref, help, err := positionalArgs([]string{"a.bam", "out"})
	expect.NoError(t, err)
	expect.False(t, help)
	expect.EQ(t, []string{in, out, ref}, []string{"a.bam", "out", ""})

	in, out, ref, _, err = positionalArgs([]string{"a.bam", "out", "ref.fa"})
	expect.NoError(t, err)
	expect.EQ(t, []string{in, out, ref}, []string{"a.bam", "out", "ref.fa"})

	_, _, _, _, err = positionalArgs([]string{"a.bam"})
	expect.True(t, err != nil)
	_, _, _, _, err = positionalArgs([]string{"a", "b", "c", "d"})
	expect.True(t, err != nil)
}
