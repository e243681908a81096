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
	"github.com/grailbio/hts/sam"
)

// Traceback directions.
const (
	tbStop byte = iota
	tbDiag
	tbUp   // consumes a query base: insertion
	tbLeft // consumes a reference base: deletion
)

// negInf marks cells outside the band or the reference.
const negInf = -(1 << 30)

type bandedResult struct {
	score                int
	queryStart, queryEnd int
	refStart, refEnd     int
	cigar                []sam.CigarOp
}

// bandedLocal computes a local alignment of query against ref, restricted to
// cells within opts.Band of the diagonal j = i + diag. The returned CIGAR
// spans the whole query, with soft clips on both ends.
//
// Row i of the traceback matrix stores column j at k = j - (i + diag) + band,
// so the diagonal predecessor (i-1, j-1) has the same k, the upper one
// (i-1, j) has k+1, and the left one (i, j-1) has k-1.
func bandedLocal(query, ref string, diag int, opts IndexOpts) bandedResult {
	var (
		n     = len(query)
		m     = len(ref)
		band  = opts.Band
		width = 2*band + 1
		tb    = make([]byte, (n+1)*width)
		prev  = make([]int, width)
		cur   = make([]int, width)
	)
	for k := 0; k < width; k++ {
		if j := diag - band + k; j >= 0 && j <= m {
			prev[k] = 0
		} else {
			prev[k] = negInf
		}
	}
	bestScore, bestI, bestK := 0, 0, 0
	for i := 1; i <= n; i++ {
		qb := query[i-1]
		for k := 0; k < width; k++ {
			j := i + diag - band + k
			if j < 0 || j > m {
				cur[k] = negInf
				continue
			}
			if j == 0 {
				cur[k] = 0
				continue
			}
			score, dir := 0, tbStop
			if prev[k] > negInf {
				s := prev[k] + opts.Mismatch
				if qb == ref[j-1] && qb != 'N' {
					s = prev[k] + opts.Match
				}
				if s > score {
					score, dir = s, tbDiag
				}
			}
			if k+1 < width && prev[k+1] > negInf {
				if s := prev[k+1] + opts.Gap; s > score {
					score, dir = s, tbUp
				}
			}
			if k > 0 && cur[k-1] > negInf {
				if s := cur[k-1] + opts.Gap; s > score {
					score, dir = s, tbLeft
				}
			}
			cur[k] = score
			tb[i*width+k] = dir
			if score > bestScore {
				bestScore, bestI, bestK = score, i, k
			}
		}
		prev, cur = cur, prev
	}
	if bestScore == 0 {
		return bandedResult{}
	}

	res := bandedResult{
		score:    bestScore,
		queryEnd: bestI,
		refEnd:   bestI + diag - band + bestK,
	}
	var rev []sam.CigarOp
	push := func(t sam.CigarOpType) {
		if l := len(rev); l > 0 && rev[l-1].Type() == t {
			rev[l-1] = sam.NewCigarOp(t, rev[l-1].Len()+1)
			return
		}
		rev = append(rev, sam.NewCigarOp(t, 1))
	}
	i, k := bestI, bestK
loop:
	for i > 0 {
		switch tb[i*width+k] {
		case tbDiag:
			push(sam.CigarMatch)
			i--
		case tbUp:
			push(sam.CigarInsertion)
			i--
			k++
		case tbLeft:
			push(sam.CigarDeletion)
			k--
		default:
			break loop
		}
	}
	res.queryStart = i
	res.refStart = i + diag - band + k

	if res.queryStart > 0 {
		res.cigar = append(res.cigar, sam.NewCigarOp(sam.CigarSoftClipped, res.queryStart))
	}
	for x := len(rev) - 1; x >= 0; x-- {
		res.cigar = append(res.cigar, rev[x])
	}
	if res.queryEnd < n {
		res.cigar = append(res.cigar, sam.NewCigarOp(sam.CigarSoftClipped, n-res.queryEnd))
	}
	return res
}
