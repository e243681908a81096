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
	"context"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/ccscheck/align"
	"github.com/grailbio/ccscheck/sinks"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func randomSeq(r *rand.Rand, n int) string {
	const bases = "ACGT"
	b := make([]byte, n)
	for i := range b {
		b[i] = bases[r.Intn(4)]
	}
	return string(b)
}

type testInput struct {
	dir, fastq, ref string
}

func fastqRecord(id, seq string) string {
	return fmt.Sprintf("@%s\n%s\n+\n%s\n", id, seq, strings.Repeat("I", len(seq)))
}

func writeInput(t *testing.T, dir string) testInput {
	r := rand.New(rand.NewSource(42))
	ref := randomSeq(r, 2000)
	snp := []byte(ref[100:400])
	if snp[50] == 'A' {
		snp[50] = 'C'
	} else {
		snp[50] = 'A'
	}
	in := testInput{
		dir:   dir,
		fastq: filepath.Join(dir, "reads.fastq"),
		ref:   filepath.Join(dir, "ref.fa"),
	}
	fq := fastqRecord("m1/1/ccs", string(snp)) +
		fastqRecord("m1/2/ccs", randomSeq(r, 300)) +
		fastqRecord("m1/3/ccs", align.ReverseComplement(ref[1000:1300]))
	require.NoError(t, ioutil.WriteFile(in.fastq, []byte(fq), 0644))
	require.NoError(t, ioutil.WriteFile(in.ref, []byte(">chr1\n"+ref+"\n"), 0644))
	return in
}

func lines(t *testing.T, path string) []string {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRunAligned(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, dir)
	in := writeInput(t, dir)
	out := filepath.Join(dir, "out")
	opts := DefaultOpts
	opts.RefPath = in.ref
	opts.PreserveOrder = true
	opts.Parallelism = 2
	require.NoError(t, Run(context.Background(), in.fastq, out, opts))

	zmws := lines(t, filepath.Join(out, sinks.ZMWMetricsFile))
	require.Len(t, zmws, 4)
	expect.True(t, strings.HasPrefix(zmws[1], "m1/1/ccs\tm1\t1\t300\t"), zmws[1])
	expect.True(t, strings.Contains(zmws[1], "\t1\tchr1\t101\t400\t+\t"), zmws[1])
	expect.True(t, strings.HasPrefix(zmws[2], "m1/2/ccs\tm1\t2\t300\t"), zmws[2])
	expect.True(t, strings.Contains(zmws[2], "\t0\t.\t.\t.\t.\t.\t."), zmws[2])
	expect.True(t, strings.Contains(zmws[3], "\tchr1\t1001\t1300\t-\t"), zmws[3])

	variants := lines(t, filepath.Join(out, sinks.VariantsFile))
	require.Len(t, variants, 2)
	expect.True(t, strings.HasPrefix(variants[1], "chr1\t151\tSNP\t"), variants[1])
	expect.True(t, strings.HasSuffix(variants[1], "\t40\tfalse\t1\tm1\tm1/1/ccs"), variants[1])

	summary := lines(t, filepath.Join(out, sinks.SummaryFile))
	expect.EQ(t, summary[2:5], []string{"RECORDS\t3", "ALIGNED\t2", "BASES\t900"})

	failures := lines(t, filepath.Join(out, sinks.FailuresFile))
	expect.EQ(t, failures, []string{"ID\tMESSAGE"})
	for _, name := range []string{sinks.ZScoresFile, sinks.SNRFile, sinks.QVCalibrationFile} {
		_, err := os.Stat(filepath.Join(out, name))
		expect.NoError(t, err, name)
	}
}

func TestRunUnaligned(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, dir)
	in := writeInput(t, dir)
	out := filepath.Join(dir, "out")
	opts := DefaultOpts
	opts.Bgzip = true
	require.NoError(t, Run(context.Background(), in.fastq, out, opts))
	_, err := os.Stat(filepath.Join(out, sinks.ZMWMetricsFile+".gz"))
	expect.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, sinks.ZMWMetricsFile))
	expect.True(t, os.IsNotExist(err))
}

func TestRunErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, dir)
	in := writeInput(t, dir)
	ctx := context.Background()

	// The output directory must not exist.
	err := Run(ctx, in.fastq, dir, DefaultOpts)
	expect.True(t, errors.Is(errors.Exists, err), err)
	expect.EQ(t, Classify(err), BadInput)

	err = Run(ctx, filepath.Join(dir, "missing.bam"), filepath.Join(dir, "o1"), DefaultOpts)
	expect.EQ(t, Classify(err), BadInput)
	_, statErr := os.Stat(filepath.Join(dir, "o1"))
	expect.True(t, os.IsNotExist(statErr))

	opts := DefaultOpts
	opts.RefPath = filepath.Join(dir, "missing.fa")
	err = Run(ctx, in.fastq, filepath.Join(dir, "o2"), opts)
	expect.EQ(t, Classify(err), BadInput)

	opts = DefaultOpts
	opts.Aligner = "blast"
	err = Run(ctx, in.fastq, filepath.Join(dir, "o3"), opts)
	expect.EQ(t, Classify(err), BadInput)

	opts = DefaultOpts
	opts.SinkErrorPolicy = "ignore"
	err = Run(ctx, in.fastq, filepath.Join(dir, "o4"), opts)
	expect.EQ(t, Classify(err), BadInput)

	// bwa is not installed at this path.
	opts = DefaultOpts
	opts.RefPath = in.ref
	opts.Aligner = BWAAligner
	opts.BWAPath = filepath.Join(dir, "bin", "bwa")
	err = Run(ctx, in.fastq, filepath.Join(dir, "o5"), opts)
	expect.EQ(t, Classify(err), BadEnvironment)
	expect.EQ(t, Classify(err).ExitCode(), 3)
}

func TestRunMalformedInput(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, dir)
	path := filepath.Join(dir, "bad.fastq")
	data := fastqRecord("m1/1/ccs", "ACGTACGT") + "this is not fastq\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
	out := filepath.Join(dir, "out")
	err := Run(context.Background(), path, out, DefaultOpts)
	assert.True(t, err != nil)
	expect.EQ(t, Classify(err), BadInput)
	// Reads before the corruption are still written.
	zmws := lines(t, filepath.Join(out, sinks.ZMWMetricsFile))
	expect.EQ(t, len(zmws), 2)
}

func TestCategory(t *testing.T) {
	expect.EQ(t, Classify(nil), Unexpected)
	expect.EQ(t, Classify(fmt.Errorf("boom")), Unexpected)
	expect.EQ(t, Classify(errors.E(errors.Unavailable, "no bwa")), BadEnvironment)
	expect.EQ(t, Classify(errors.E(errors.Invalid, "bad")), BadInput)
	expect.EQ(t, BadInput.ExitCode(), 2)
	expect.EQ(t, Unexpected.ExitCode(), 1)
	expect.EQ(t, BadEnvironment.String(), "bad environment")
	expect.True(t, strings.Contains(BadEnvironment.Hint(), "PATH"))
}
