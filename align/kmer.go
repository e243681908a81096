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

const invalidKmerBits = uint8(255)

var asciiToKmerMap [256]uint8

func init() {
	for i := range asciiToKmerMap {
		asciiToKmerMap[i] = invalidKmerBits
	}
	asciiToKmerMap['A'] = 0
	asciiToKmerMap['a'] = 0
	asciiToKmerMap['C'] = 1
	asciiToKmerMap['c'] = 1
	asciiToKmerMap['G'] = 2
	asciiToKmerMap['g'] = 2
	asciiToKmerMap['T'] = 3
	asciiToKmerMap['t'] = 3
}

// Kmer is a 2-bit packed encoding of up to 32 bases.
type Kmer uint64

// MaxKmerLength is the longest k-mer that fits in a Kmer.
const MaxKmerLength = 32

// kmerizer yields the k-mers of a sequence together with their start
// positions, skipping windows that contain a non-ACGT base.
type kmerizer struct {
	k    int
	mask Kmer
	seq  string
	// next is the index of the next base to shift in; valid is the number of
	// consecutive ACGT bases ending just before next.
	next  int
	valid int
	cur   Kmer
}

func newKmerizer(k int) *kmerizer {
	mask := ^Kmer(0)
	if k < MaxKmerLength {
		mask = ^(^Kmer(0) << Kmer(2*k))
	}
	return &kmerizer{k: k, mask: mask}
}

func (z *kmerizer) Reset(seq string) {
	z.seq = seq
	z.next = 0
	z.valid = 0
	z.cur = 0
}

// Scan advances to the next valid k-mer. Get returns it.
func (z *kmerizer) Scan() bool {
	for z.next < len(z.seq) {
		bits := asciiToKmerMap[z.seq[z.next]]
		z.next++
		if bits == invalidKmerBits {
			z.valid = 0
			z.cur = 0
			continue
		}
		z.cur = ((z.cur << 2) | Kmer(bits)) & z.mask
		z.valid++
		if z.valid >= z.k {
			return true
		}
	}
	return false
}

// Get returns the current k-mer and its 0-based start position.
func (z *kmerizer) Get() (Kmer, int) {
	return z.cur, z.next - z.k
}
