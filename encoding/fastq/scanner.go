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

package fastq

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrTooLong is returned when a read exceeds ScannerOpts.MaxSeqLen.
	ErrTooLong = errors.New("FASTQ read exceeds the maximum sequence length")
)

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string. ID keeps its leading '@'.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Name returns the read name: the ID without its '@' prefix and without
// anything after the first space.
func (r *Read) Name() string {
	id := r.ID
	if len(id) > 0 && id[0] == '@' {
		id = id[1:]
	}
	for i := 0; i < len(id); i++ {
		if id[i] == ' ' || id[i] == '\t' {
			return id[:i]
		}
	}
	return id
}

var errEOF = errors.New("eof")

// ScannerOpts controls buffering and validation in a Scanner.
type ScannerOpts struct {
	// BufferSize is the initial size of the line buffer. Zero means
	// bufio's default.
	BufferSize int
	// MaxSeqLen bounds the length of a single line. Lines longer than this
	// cause the scan to fail with ErrTooLong. Zero means no limit beyond
	// available memory.
	MaxSeqLen int
}

// Scanner provides a convenient interface for reading FASTQ read
// data. The Scan method returns the next read, returning a boolean
// indicating whether the read succeeded. Scanners are not
// threadsafe.
//
// Scanner performs some validation: it requires ID lines to begin
// with "@", that line 3 begins with "+", and that the sequence and
// quality lines have the same length.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader, opts ScannerOpts) *Scanner {
	b := bufio.NewScanner(r)
	initial := opts.BufferSize
	if initial <= 0 {
		initial = 4096
	}
	max := opts.MaxSeqLen
	if max <= 0 {
		max = int(^uint(0) >> 1)
	} else {
		// Leave room for the line terminator.
		max += 2
	}
	if initial > max {
		initial = max
	}
	b.Buffer(make([]byte, 0, initial), max)
	return &Scanner{b: b}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.translate(f.b.Err()); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID = string(id)
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	unk := f.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	read.Unk = string(unk)
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	if len(read.Qual) != len(read.Seq) {
		f.err = ErrInvalid
		return false
	}
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.translate(f.b.Err()); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

func (f *Scanner) translate(err error) error {
	if err == bufio.ErrTooLong {
		return ErrTooLong
	}
	return err
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}
