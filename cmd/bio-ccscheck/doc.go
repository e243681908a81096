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

/*
bio-ccscheck reads a PacBio circular consensus (CCS) BAM or FASTQ file and
writes per-read metrics into a new output directory. If a reference FASTA is
given, every read is aligned to it and the differences are reported as
variants.

Output tables, one row per read unless noted:

  zmws.tsv            read metadata and alignment placement
  zscores.tsv         one row per subread z-score
  variants.tsv        one row per variant, 1-based positions
  snrs.tsv            per-channel signal to noise ratio
  qv_calibration.tsv  reported base quality vs. observed error rate
  summary.tsv         run totals, tagged with a run UUID
  failures.tsv        reads that could not be processed

Exit status is 0 on success, 2 for bad arguments or input, 3 when a required
program (e.g. bwa with -aligner=bwa) cannot be found, and 1 otherwise.

Sample usage:
bio-ccscheck \
    -parallelism 16 \
    -bgzip \
    m54006_160504_020705.ccs.bam \
    ccscheck-out \
    ref.fa
*/
package main
