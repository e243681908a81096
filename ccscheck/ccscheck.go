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

// Package ccscheck validates a run of circular consensus reads: it reads a
// CCS BAM or FASTQ file, optionally aligns every read to a reference and
// calls variants, and writes per-read and per-run tables into a new output
// directory.
package ccscheck

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/ccscheck/align"
	"github.com/grailbio/ccscheck/pipeline"
	"github.com/grailbio/ccscheck/readsource"
	"github.com/grailbio/ccscheck/sinks"
	"github.com/grailbio/ccscheck/variant"
)

// Aligner names.
const (
	BuiltinAligner = "builtin"
	BWAAligner     = "bwa"
)

// Opts configures Run.
type Opts struct {
	// RefPath is the reference FASTA. If empty, reads are not aligned.
	RefPath string
	// Aligner is BuiltinAligner or BWAAligner.
	Aligner string
	// BWAPath is the bwa executable, looked up in $PATH if it has no slash.
	BWAPath string
	// KmerLength is the seed length of the builtin aligner.
	KmerLength int
	// EndWindow flags variants this close to an alignment end.
	EndWindow int

	// Parallelism is the number of transform workers; 0 means the number of
	// CPUs.
	Parallelism int
	// QueueSize bounds the records waiting for the sinks.
	QueueSize int
	// PreserveOrder writes records in input order.
	PreserveOrder bool
	// SinkErrorPolicy is one of "isolate", "disable" or "abort".
	SinkErrorPolicy string
	// ProgressInterval logs progress every so many records.
	ProgressInterval int
	// BatchSize is the number of reads sent to one bwa run.
	BatchSize int

	// Bgzip compresses the output tables.
	Bgzip bool
	// SampleRate processes a deterministic subset of the reads.
	SampleRate float64
	// BufferSize and MaxSeqLen tune the input parsers.
	BufferSize int
	MaxSeqLen  int
}

// DefaultOpts is the default configuration.
var DefaultOpts = Opts{
	Aligner:          BuiltinAligner,
	BWAPath:          align.DefaultExternalOpts.Binary,
	KmerLength:       align.DefaultIndexOpts.KmerLength,
	EndWindow:        variant.DefaultOpts.EndWindow,
	SinkErrorPolicy:  pipeline.IsolateSinkErrors.String(),
	ProgressInterval: pipeline.DefaultOpts.ProgressInterval,
	BatchSize:        256,
	SampleRate:       1,
	BufferSize:       readsource.DefaultOpts.BufferSize,
	MaxSeqLen:        math.MaxInt32,
}

func exists(ctx context.Context, path string) error {
	if _, err := file.Stat(ctx, path); err != nil {
		return errors.E(errors.NotExist, fmt.Sprintf("can't find file: %s", path), err)
	}
	return nil
}

// validate checks the arguments before anything is created.
func validate(ctx context.Context, inputPath, outDir string, opts Opts) (pipeline.SinkErrorPolicy, error) {
	policy, err := pipeline.ParseSinkErrorPolicy(opts.SinkErrorPolicy)
	if err != nil {
		return policy, err
	}
	if opts.Aligner != BuiltinAligner && opts.Aligner != BWAAligner {
		return policy, errors.E(errors.Invalid, fmt.Sprintf("unknown aligner %q, want %s or %s", opts.Aligner, BuiltinAligner, BWAAligner))
	}
	if opts.SampleRate < 0 || opts.SampleRate > 1 {
		return policy, errors.E(errors.Invalid, fmt.Sprintf("sample rate %v out of range [0, 1]", opts.SampleRate))
	}
	if err := exists(ctx, inputPath); err != nil {
		return policy, err
	}
	if opts.RefPath != "" {
		if err := exists(ctx, opts.RefPath); err != nil {
			return policy, err
		}
	}
	if _, err := os.Stat(outDir); err == nil {
		return policy, errors.E(errors.Exists, fmt.Sprintf("the output directory %s already exists, please specify a new directory or delete the old one", outDir))
	}
	return policy, nil
}

// newTransform builds the aligner and the variant caller, or returns nil if
// no reference is configured.
func newTransform(ctx context.Context, opts Opts) (*pipeline.Transform, error) {
	if opts.RefPath == "" {
		return nil, nil
	}
	var (
		aligner align.Aligner
		err     error
	)
	switch opts.Aligner {
	case BWAAligner:
		extOpts := align.DefaultExternalOpts
		extOpts.Binary = opts.BWAPath
		extOpts.RefPath = opts.RefPath
		aligner, err = align.NewExternal(ctx, extOpts)
	default:
		idxOpts := align.DefaultIndexOpts
		if opts.KmerLength > 0 {
			idxOpts.KmerLength = opts.KmerLength
		}
		if opts.Parallelism > 0 {
			idxOpts.Parallelism = opts.Parallelism
		}
		aligner, err = align.LoadIndex(ctx, opts.RefPath, idxOpts)
	}
	if err != nil {
		return nil, err
	}
	return &pipeline.Transform{
		Aligner: aligner,
		Caller:  variant.NewCaller(variant.Opts{EndWindow: opts.EndWindow}),
	}, nil
}

// Run processes inputPath and writes the tables into outDir, which must not
// exist yet. Per-read failures are listed in failures.tsv and do not make Run
// fail. Use Classify to turn the returned error into a user-facing category.
func Run(ctx context.Context, inputPath, outDir string, opts Opts) (err error) {
	policy, err := validate(ctx, inputPath, outDir, opts)
	if err != nil {
		return err
	}
	transform, err := newTransform(ctx, opts)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(outDir, 0777); err != nil {
		return errors.E("create output directory", outDir, err)
	}

	sinkOpts := sinks.Opts{Compress: opts.Bgzip, Parallelism: 1}
	outputs, err := sinks.NewDefault(ctx, outDir, sinkOpts)
	if err != nil {
		return err
	}
	failures, err := sinks.NewFailureLog(ctx, outDir, sinkOpts)
	if err != nil {
		for _, s := range outputs {
			_ = s.Finalize()
		}
		return err
	}
	defer func() {
		if e := failures.Close(); e != nil && err == nil {
			err = e
		}
	}()

	src := readsource.NewIterator(ctx, inputPath, readsource.Opts{
		BufferSize:  opts.BufferSize,
		MaxSeqLen:   opts.MaxSeqLen,
		Parallelism: 1,
		SampleRate:  opts.SampleRate,
	})
	engine := pipeline.New(transform, failures, pipeline.Opts{
		Parallelism:      opts.Parallelism,
		QueueSize:        opts.QueueSize,
		PreserveOrder:    opts.PreserveOrder,
		SinkErrorPolicy:  policy,
		ProgressInterval: opts.ProgressInterval,
		BatchSize:        opts.BatchSize,
	})
	stats, err := engine.Run(ctx, src, outputs)
	if e := src.Close(); e != nil && err == nil {
		err = e
	}
	log.Printf("ccscheck: %s: %d reads, %d processed, %d failed, results in %s",
		inputPath, stats.Reads, stats.Delivered, stats.ReadFailures, outDir)
	return err
}
