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

// Package ccs defines the records that flow through the ccscheck pipeline:
// circular consensus reads as produced by a read source, their optional
// alignment against a reference, the variants called from that alignment,
// and the processed record that bundles the three for the output sinks.
//
// All values in this package are treated as immutable once they have been
// handed to the pipeline. Producers build them, consumers only read them.
package ccs

// Read is one circular consensus sequencing read.
//
// The metadata fields mirror the PacBio CCS BAM aux tags (zm, np, rq, sn,
// za, zs). A zero value means the tag was absent, except for ZMW, which is
// -1 when unknown. Reads parsed from FASTQ only carry Movie and ZMW, which
// are recovered from the read name when it has the "movie/zmw/ccs" form.
type Read struct {
	// ID is the read name, without the FASTQ '@' prefix.
	ID string
	// Seq is the base sequence, upper-case ASCII.
	Seq string
	// Qual holds one phred score per base, without the +33 offset. It may be
	// nil if the source carries no qualities.
	Qual []byte

	Movie       string
	ZMW         int64
	NumPasses   int
	ReadQuality float32
	// SNR is the per-channel signal to noise ratio, in A, C, G, T order.
	SNR [4]float32
	// AvgZScore is the average z-score of the subreads against the consensus.
	AvgZScore float32
	// ZScores holds one z-score per subread.
	ZScores []float32
}

// Len returns the number of bases in the read.
func (r *Read) Len() int { return len(r.Seq) }

// HasSNR reports whether any SNR channel was populated.
func (r *Read) HasSNR() bool {
	return r.SNR != [4]float32{}
}
