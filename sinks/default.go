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

package sinks

import (
	"context"

	"github.com/grailbio/ccscheck/pipeline"
)

// NewDefault creates the standard tables in dir, in dispatch order:
// zmws, zscores, variants, snrs, qv_calibration and summary. If one cannot
// be created, the ones already created are finalized.
func NewDefault(ctx context.Context, dir string, opts Opts) ([]pipeline.Sink, error) {
	ctors := []func(context.Context, string, Opts) (pipeline.Sink, error){
		func(ctx context.Context, dir string, opts Opts) (pipeline.Sink, error) { return NewZMWMetrics(ctx, dir, opts) },
		func(ctx context.Context, dir string, opts Opts) (pipeline.Sink, error) { return NewZScores(ctx, dir, opts) },
		func(ctx context.Context, dir string, opts Opts) (pipeline.Sink, error) { return NewVariants(ctx, dir, opts) },
		func(ctx context.Context, dir string, opts Opts) (pipeline.Sink, error) { return NewSNR(ctx, dir, opts) },
		func(ctx context.Context, dir string, opts Opts) (pipeline.Sink, error) { return NewQVCalibration(ctx, dir, opts) },
		func(ctx context.Context, dir string, opts Opts) (pipeline.Sink, error) { return NewSummary(ctx, dir, opts) },
	}
	var sinks []pipeline.Sink
	for _, ctor := range ctors {
		s, err := ctor(ctx, dir, opts)
		if err != nil {
			for _, created := range sinks {
				_ = created.Finalize()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
