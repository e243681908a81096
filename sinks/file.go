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

// Package sinks provides the output tables written by ccscheck. Each table
// is a pipeline.Sink that owns one TSV file in the output directory.
package sinks

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// Opts configures the file sinks.
type Opts struct {
	// Compress writes BGZF-compressed files with a ".gz" suffix.
	Compress bool
	// Parallelism is the number of BGZF compression goroutines.
	Parallelism int
}

// DefaultOpts writes uncompressed files.
var DefaultOpts = Opts{Parallelism: 1}

// Output file names, before the optional ".gz" suffix.
const (
	ZMWMetricsFile    = "zmws.tsv"
	ZScoresFile       = "zscores.tsv"
	VariantsFile      = "variants.tsv"
	SNRFile           = "snrs.tsv"
	QVCalibrationFile = "qv_calibration.tsv"
	SummaryFile       = "summary.tsv"
	FailuresFile      = "failures.tsv"
)

// Path returns the path of the named output file in dir.
func Path(dir, name string, opts Opts) string {
	path := filepath.Join(dir, name)
	if opts.Compress {
		path += ".gz"
	}
	return path
}

// tsvFile is a TSV table backed by a file.File. close is idempotent.
type tsvFile struct {
	ctx  context.Context
	path string
	out  file.File
	bgzf *bgzf.Writer
	w    *tsv.Writer

	closed   bool
	closeErr error
}

func createTSV(ctx context.Context, dir, name string, opts Opts, header ...string) (*tsvFile, error) {
	path := Path(dir, name, opts)
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E("create", path, err)
	}
	t := &tsvFile{ctx: ctx, path: path, out: out}
	if opts.Compress {
		parallelism := opts.Parallelism
		if parallelism <= 0 {
			parallelism = 1
		}
		t.bgzf = bgzf.NewWriter(out.Writer(ctx), parallelism)
		t.w = tsv.NewWriter(t.bgzf)
	} else {
		t.w = tsv.NewWriter(out.Writer(ctx))
	}
	if len(header) > 0 {
		for _, col := range header {
			t.w.WriteString(col)
		}
		if err := t.w.EndLine(); err != nil {
			t.close()
			return nil, errors.E("write header", path, err)
		}
	}
	return t, nil
}

// endLine terminates the current row.
func (t *tsvFile) endLine() error {
	if err := t.w.EndLine(); err != nil {
		return errors.E("write", t.path, err)
	}
	return nil
}

func (t *tsvFile) writeInt(v int64) {
	if v >= 0 && v <= int64(^uint32(0)) {
		t.w.WriteUint32(uint32(v))
		return
	}
	t.w.WriteString(strconv.FormatInt(v, 10))
}

func (t *tsvFile) writeFloat(v float64, prec int) {
	t.w.WriteString(strconv.FormatFloat(v, 'f', prec, 64))
}

// writeOpt writes s, or "." if it is empty.
func (t *tsvFile) writeOpt(s string) {
	if s == "" {
		t.w.WriteByte('.')
		return
	}
	t.w.WriteString(s)
}

func (t *tsvFile) close() error {
	if t.closed {
		return t.closeErr
	}
	t.closed = true
	err := t.w.Flush()
	if t.bgzf != nil {
		if e := t.bgzf.Close(); e != nil && err == nil {
			err = e
		}
	}
	file.CloseAndReport(t.ctx, t.out, &err)
	if err != nil {
		err = errors.E("close", t.path, err)
	}
	t.closeErr = err
	return err
}
