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

// Package readsource turns an input file into a lazy, finite stream of
// ccs.Reads. FASTQ (optionally gzipped) and unaligned PacBio CCS BAM inputs
// are supported; the format is picked from the file name.
package readsource

import (
	"context"
	"io"
	"math"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/ccscheck/encoding/ccsbam"
	"github.com/grailbio/ccscheck/encoding/fastq"
	"github.com/klauspost/compress/gzip"
)

// Iterator yields reads one at a time. It is consumed exactly once and is
// not thread-safe.
//
// Example:
//   iter := readsource.NewIterator(ctx, path, readsource.DefaultOpts)
//   for iter.Scan() {
//     read := iter.Read()
//   }
//   err := iter.Close()
type Iterator interface {
	// Scan advances to the next read. It returns false at the end of the
	// input or on error.
	Scan() bool
	// Read returns the read found by the last successful Scan.
	Read() *ccs.Read
	// Err returns the error that stopped Scan, if any.
	Err() error
	// Close releases the underlying file and returns Err() or a close error.
	Close() error
}

// Opts holds the parser knobs. They are passed explicitly to every source
// instead of being process-wide settings.
type Opts struct {
	// BufferSize is the read buffer size used by the parsers.
	BufferSize int
	// MaxSeqLen is the longest read accepted. A longer read fails the whole
	// input. Zero means no limit.
	MaxSeqLen int
	// Parallelism is the number of decompression goroutines used for BAM.
	Parallelism int
	// SampleRate keeps a deterministic pseudo-random subset of the reads,
	// selected by hashing the read ID. Zero, or any value >= 1, keeps
	// everything.
	SampleRate float64
}

// DefaultOpts are the default source options.
var DefaultOpts = Opts{
	BufferSize:  4096,
	MaxSeqLen:   math.MaxInt32,
	Parallelism: 1,
	SampleRate:  1,
}

// Format identifies an input file format.
type Format int

const (
	// BAM is an unaligned PacBio CCS BAM file.
	BAM Format = iota
	// FASTQ is a plain or gzipped FASTQ file.
	FASTQ
)

// DetermineFormat picks the format from the file name. Names ending in
// .fastq, .fq, .fastq.gz or .fq.gz are FASTQ; everything else is BAM.
func DetermineFormat(path string) Format {
	lower := strings.ToLower(path)
	lower = strings.TrimSuffix(lower, ".gz")
	if strings.HasSuffix(lower, ".fastq") || strings.HasSuffix(lower, ".fq") {
		return FASTQ
	}
	return BAM
}

// NewIterator opens path and returns an iterator over its reads. Errors
// opening the file are reported through the returned iterator's Err and
// Close. Parse errors are tagged with the errors.Invalid kind.
func NewIterator(ctx context.Context, path string, opts Opts) Iterator {
	in, err := file.Open(ctx, path)
	if err != nil {
		return NewErrorIterator(err)
	}
	var iter Iterator
	switch DetermineFormat(path) {
	case FASTQ:
		iter, err = newFASTQIterator(ctx, in, path, opts)
	default:
		iter, err = newBAMIterator(ctx, in, path, opts)
	}
	if err != nil {
		_ = in.Close(ctx)
		return NewErrorIterator(err)
	}
	if opts.SampleRate > 0 && opts.SampleRate < 1 {
		iter = NewSampler(iter, opts.SampleRate)
	}
	return iter
}

type fastqIterator struct {
	ctx     context.Context
	path    string
	in      file.File
	gz      io.Closer
	scanner *fastq.Scanner
	fq      fastq.Read
	read    *ccs.Read
	err     error
}

func newFASTQIterator(ctx context.Context, in file.File, path string, opts Opts) (Iterator, error) {
	it := &fastqIterator{ctx: ctx, path: path, in: in}
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, errors.E(errors.Invalid, path, err)
		}
		it.gz = gz
		reader = gz
	}
	it.scanner = fastq.NewScanner(reader, fastq.ScannerOpts{
		BufferSize: opts.BufferSize,
		MaxSeqLen:  opts.MaxSeqLen,
	})
	return it, nil
}

func (it *fastqIterator) Scan() bool {
	if it.err != nil {
		return false
	}
	if !it.scanner.Scan(&it.fq) {
		if err := it.scanner.Err(); err != nil {
			it.err = errors.E(errors.Invalid, it.path, err)
		}
		return false
	}
	read, err := fastq.ToCCS(&it.fq)
	if err != nil {
		it.err = errors.E(errors.Invalid, it.path, err)
		return false
	}
	it.read = read
	return true
}

func (it *fastqIterator) Read() *ccs.Read { return it.read }
func (it *fastqIterator) Err() error      { return it.err }

func (it *fastqIterator) Close() error {
	err := it.err
	if it.gz != nil {
		if e := it.gz.Close(); e != nil && err == nil {
			err = e
		}
	}
	if e := it.in.Close(it.ctx); e != nil && err == nil {
		err = e
	}
	return err
}

type bamIterator struct {
	ctx    context.Context
	path   string
	in     file.File
	reader *ccsbam.Reader
	err    error
}

func newBAMIterator(ctx context.Context, in file.File, path string, opts Opts) (Iterator, error) {
	reader, err := ccsbam.NewReader(in.Reader(ctx), ccsbam.Opts{
		BufferSize:  opts.BufferSize,
		MaxSeqLen:   opts.MaxSeqLen,
		Parallelism: opts.Parallelism,
	})
	if err != nil {
		return nil, errors.E(errors.Invalid, path, err)
	}
	return &bamIterator{ctx: ctx, path: path, in: in, reader: reader}, nil
}

func (it *bamIterator) Scan() bool {
	if it.err != nil {
		return false
	}
	if !it.reader.Scan() {
		if err := it.reader.Err(); err != nil {
			it.err = errors.E(errors.Invalid, it.path, err)
		}
		return false
	}
	return true
}

func (it *bamIterator) Read() *ccs.Read { return it.reader.Read() }
func (it *bamIterator) Err() error      { return it.err }

func (it *bamIterator) Close() error {
	err := it.err
	if e := it.reader.Close(); e != nil && err == nil {
		err = e
	}
	if e := it.in.Close(it.ctx); e != nil && err == nil {
		err = e
	}
	return err
}
