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

package align

import (
	"context"
	"fmt"
	"sort"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/ccscheck/encoding/fasta"
)

const nIndexShard = 64 // # of shards in the k-mer table.

// IndexOpts configures the built-in aligner.
type IndexOpts struct {
	// KmerLength is the seed length, in [8, 32].
	KmerLength int
	// MinSeeds is the least number of seeds that must vote for a diagonal
	// before it is extended.
	MinSeeds int
	// Band is the half width of the banded alignment around the voted
	// diagonal. It is also the width of a diagonal voting bin.
	Band int
	// MaxOccurrences drops k-mers that occur more often than this in the
	// reference. Zero means no limit.
	MaxOccurrences int
	// Scores for the local alignment. Mismatch and Gap are negative.
	Match, Mismatch, Gap int
	// Parallelism bounds the number of shards built concurrently.
	Parallelism int
}

// DefaultIndexOpts suits PacBio HiFi reads against a small reference.
var DefaultIndexOpts = IndexOpts{
	KmerLength:     15,
	MinSeeds:       3,
	Band:           64,
	MaxOccurrences: 256,
	Match:          2,
	Mismatch:       -4,
	Gap:            -4,
	Parallelism:    8,
}

type refHit struct {
	ref int32
	pos int32
}

type kmerHit struct {
	kmer Kmer
	hit  refHit
}

// Index is a k-mer index over a reference. It implements Aligner.
type Index struct {
	opts   IndexOpts
	names  []string
	seqs   []string
	shards [nIndexShard]map[Kmer][]refHit
}

func hashKmer(k Kmer) uint64 {
	return farm.Hash64WithSeed(nil, uint64(k))
}

func kmerShard(k Kmer) int {
	return int(hashKmer(k) & (nIndexShard - 1))
}

func (o IndexOpts) validate() error {
	if o.KmerLength < 8 || o.KmerLength > MaxKmerLength {
		return errors.E(errors.Invalid, fmt.Sprintf("kmer length %d out of range [8, %d]", o.KmerLength, MaxKmerLength))
	}
	if o.Band <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("band must be positive, got %d", o.Band))
	}
	if o.Match <= 0 || o.Mismatch >= 0 || o.Gap >= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("bad scores: match %d mismatch %d gap %d", o.Match, o.Mismatch, o.Gap))
	}
	return nil
}

// LoadIndex reads the FASTA file at path and indexes it.
func LoadIndex(ctx context.Context, path string, opts IndexOpts) (*Index, error) {
	fa, err := fasta.Load(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Invalid, "load reference", err)
	}
	return NewIndex(fa, opts)
}

// NewIndex indexes every sequence in fa.
func NewIndex(fa fasta.Fasta, opts IndexOpts) (*Index, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.MinSeeds <= 0 {
		opts.MinSeeds = 1
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	idx := &Index{opts: opts}
	var buckets [nIndexShard][]kmerHit
	z := newKmerizer(opts.KmerLength)
	for i, name := range fa.SeqNames() {
		seq, err := fa.Seq(name)
		if err != nil {
			return nil, err
		}
		idx.names = append(idx.names, name)
		idx.seqs = append(idx.seqs, seq)
		z.Reset(seq)
		for z.Scan() {
			k, pos := z.Get()
			s := kmerShard(k)
			buckets[s] = append(buckets[s], kmerHit{kmer: k, hit: refHit{ref: int32(i), pos: int32(pos)}})
		}
	}
	parallelism := opts.Parallelism
	if parallelism > nIndexShard {
		parallelism = nIndexShard
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * nIndexShard) / parallelism
		endIdx := ((jobIdx + 1) * nIndexShard) / parallelism
		for shard := startIdx; shard < endIdx; shard++ {
			m := make(map[Kmer][]refHit, len(buckets[shard]))
			for _, kh := range buckets[shard] {
				m[kh.kmer] = append(m[kh.kmer], kh.hit)
			}
			if opts.MaxOccurrences > 0 {
				for k, hits := range m {
					if len(hits) > opts.MaxOccurrences {
						delete(m, k)
					}
				}
			}
			idx.shards[shard] = m
			buckets[shard] = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("indexed %d reference sequences with k=%d", len(idx.names), opts.KmerLength)
	return idx, nil
}

func (idx *Index) lookup(k Kmer) []refHit {
	return idx.shards[kmerShard(k)][k]
}

type diagBin struct {
	ref    int32
	strand ccs.Strand
	bin    int64
}

type diagVotes struct {
	n       int
	diagSum int64
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Align implements Aligner. Seeds from both strands vote for a
// (reference, strand, diagonal) bin; the winning bin is extended with a
// banded local alignment.
func (idx *Index) Align(read *ccs.Read) (*ccs.Alignment, error) {
	k := idx.opts.KmerLength
	if len(read.Seq) < k {
		return nil, nil
	}
	queries := [2]string{read.Seq, ReverseComplement(read.Seq)}
	votes := make(map[diagBin]*diagVotes)
	z := newKmerizer(k)
	band := int64(idx.opts.Band)
	for s, q := range queries {
		z.Reset(q)
		for z.Scan() {
			kmer, qpos := z.Get()
			for _, h := range idx.lookup(kmer) {
				diag := int64(h.pos) - int64(qpos)
				key := diagBin{ref: h.ref, strand: ccs.Strand(s), bin: floorDiv(diag, band)}
				v := votes[key]
				if v == nil {
					v = &diagVotes{}
					votes[key] = v
				}
				v.n++
				v.diagSum += diag
			}
		}
	}
	if len(votes) == 0 {
		return nil, nil
	}
	keys := make([]diagBin, 0, len(votes))
	for key := range votes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := votes[keys[i]], votes[keys[j]]
		if a.n != b.n {
			return a.n > b.n
		}
		// Ties go to the lowest coordinate so results are reproducible.
		if keys[i].ref != keys[j].ref {
			return keys[i].ref < keys[j].ref
		}
		if keys[i].strand != keys[j].strand {
			return keys[i].strand < keys[j].strand
		}
		return keys[i].bin < keys[j].bin
	})
	best := keys[0]
	bestVotes := votes[best]
	if bestVotes.n < idx.opts.MinSeeds {
		return nil, nil
	}
	second := 0
	for _, key := range keys[1:] {
		// Seeds that straddle a bin boundary split their votes between
		// neighbors; those are not competing placements.
		if key.ref == best.ref && key.strand == best.strand && (key.bin == best.bin-1 || key.bin == best.bin+1) {
			continue
		}
		second = votes[key].n
		break
	}
	diag := int(bestVotes.diagSum / int64(bestVotes.n))

	query := queries[best.strand]
	qual := read.Qual
	if best.strand == ccs.Reverse {
		qual = reverseQual(qual)
	}
	ref := idx.seqs[best.ref]
	winStart := diag - idx.opts.Band
	if winStart < 0 {
		winStart = 0
	}
	winEnd := diag + len(query) + idx.opts.Band
	if winEnd > len(ref) {
		winEnd = len(ref)
	}
	if winEnd <= winStart {
		return nil, nil
	}
	res := bandedLocal(query, ref[winStart:winEnd], diag-winStart, idx.opts)
	if res.score <= 0 {
		return nil, nil
	}
	aln := &ccs.Alignment{
		RefName:    idx.names[best.ref],
		RefStart:   winStart + res.refStart,
		RefEnd:     winStart + res.refEnd,
		Strand:     best.strand,
		Score:      res.score,
		MapQ:       mapQ(bestVotes.n, second),
		Cigar:      res.cigar,
		QueryStart: res.queryStart,
		QueryEnd:   res.queryEnd,
		QuerySeq:   query,
		QueryQual:  qual,
	}
	aln.RefSeq = ref[aln.RefStart:aln.RefEnd]
	return aln, nil
}

// mapQ turns the seed votes of the best and the runner-up placement into a
// phred-like mapping quality, capped at 60.
func mapQ(best, second int) int {
	if second == 0 {
		return 60
	}
	if second >= best {
		return 0
	}
	return 60 * (best - second) / best
}
