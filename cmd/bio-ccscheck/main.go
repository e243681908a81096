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
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/ccscheck/ccscheck"
)

var (
	aligner          = flag.String("aligner", ccscheck.DefaultOpts.Aligner, "Aligner to use when a reference is given: 'builtin' or 'bwa'")
	bwaPath          = flag.String("bwa", ccscheck.DefaultOpts.BWAPath, "bwa executable for -aligner=bwa; looked up in $PATH unless it contains a slash")
	kmerLength       = flag.Int("kmer-length", ccscheck.DefaultOpts.KmerLength, "Seed length of the builtin aligner, at most 32")
	endWindow        = flag.Int("end-window", ccscheck.DefaultOpts.EndWindow, "Variants within this many bases of an alignment end are flagged AT_END")
	parallelism      = flag.Int("parallelism", 0, "Number of reads processed concurrently; 0 = runtime.NumCPU()")
	queueSize        = flag.Int("queue-size", 0, "Maximum number of processed reads waiting to be written; 0 = 2*parallelism")
	preserveOrder    = flag.Bool("preserve-order", false, "Write reads in input order instead of completion order")
	sinkErrorPolicy  = flag.String("sink-errors", ccscheck.DefaultOpts.SinkErrorPolicy, "What to do when writing an output table fails: 'isolate', 'disable' or 'abort'")
	progressInterval = flag.Int("progress", ccscheck.DefaultOpts.ProgressInterval, "Log progress every N reads; 0 disables")
	batchSize        = flag.Int("batch-size", ccscheck.DefaultOpts.BatchSize, "Number of reads aligned by one bwa run with -aligner=bwa")
	bgzip            = flag.Bool("bgzip", false, "BGZF-compress the output tables")
	sampleRate       = flag.Float64("sample-rate", ccscheck.DefaultOpts.SampleRate, "Process this fraction of the reads, chosen by hashing the read name")
	bufferSize       = flag.Int("buffer-size", ccscheck.DefaultOpts.BufferSize, "Input read buffer size")
	maxSeqLen        = flag.Int("max-seq-len", ccscheck.DefaultOpts.MaxSeqLen, "Reads longer than this make the input invalid")
)

func bioCCSCheckUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] INPUT OUTDIR [REF]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  INPUT   the input CCS BAM or FASTQ file\n")
	fmt.Fprintf(os.Stderr, "  OUTDIR  directory to write results into; it must not exist\n")
	fmt.Fprintf(os.Stderr, "  REF     a FASTA file with the references (optional)\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

// positionalArgs splits INPUT OUTDIR [REF]. help is set when the user asked
// for usage.
func positionalArgs(args []string) (input, outDir, ref string, help bool, err error) {
	if len(args) == 1 {
		switch args[0] {
		case "h", "help", "?", "-h", "-help", "--help":
			return "", "", "", true, nil
		}
	}
	switch {
	case len(args) > 3:
		return "", "", "", false, fmt.Errorf("too many arguments")
	case len(args) < 2:
		return "", "", "", false, fmt.Errorf("not enough arguments")
	}
	input, outDir = args[0], args[1]
	if len(args) == 3 {
		ref = args[2]
	}
	return input, outDir, ref, false, nil
}

func main() {
	flag.Usage = bioCCSCheckUsage
	shutdown := grail.Init()

	input, outDir, ref, help, err := positionalArgs(flag.Args())
	if help {
		bioCCSCheckUsage()
		shutdown()
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		bioCCSCheckUsage()
		shutdown()
		os.Exit(ccscheck.BadInput.ExitCode())
	}
	ctx := vcontext.Background()
	opts := ccscheck.Opts{
		RefPath:          ref,
		Aligner:          *aligner,
		BWAPath:          *bwaPath,
		KmerLength:       *kmerLength,
		EndWindow:        *endWindow,
		Parallelism:      *parallelism,
		QueueSize:        *queueSize,
		PreserveOrder:    *preserveOrder,
		SinkErrorPolicy:  *sinkErrorPolicy,
		ProgressInterval: *progressInterval,
		BatchSize:        *batchSize,
		Bgzip:            *bgzip,
		SampleRate:       *sampleRate,
		BufferSize:       *bufferSize,
		MaxSeqLen:        *maxSeqLen,
	}
	if err := ccscheck.Run(ctx, input, outDir, opts); err != nil {
		cat := ccscheck.Classify(err)
		log.Error.Printf("%s: %v", cat, err)
		log.Error.Printf("%s", cat.Hint())
		shutdown()
		os.Exit(cat.ExitCode())
	}
	log.Debug.Printf("exiting")
	shutdown()
}
