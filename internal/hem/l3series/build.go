package l3series

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/hem.analyzer/internal/hem"
	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
	"github.com/banshee-data/hem.analyzer/internal/hem/l2roi"
)

// traceFrames is how many leading frames get per-frame trace output.
const traceFrames = 3

// FrameAnalyzer computes the metrics of one sampled frame.
type FrameAnalyzer interface {
	Analyze(f l1frames.SampledFrame) (l2roi.FrameMetrics, error)
}

// BuildOptions bound and parallelise a Build.
type BuildOptions struct {
	// Workers > 1 analyses frames of a batch concurrently. Results are
	// reassembled in sample order, so output is identical to Workers=1.
	Workers int
	// MaxFrames stops sampling after this many sampled frames; 0 means no bound.
	MaxFrames int
}

// Build drains sampler through analyzer. Exhaustion of the source ends
// the series normally. An analyzer error aborts the build with no partial
// result, as does cancellation of ctx (checked between frames).
func Build(ctx context.Context, sampler *l1frames.Sampler, analyzer FrameAnalyzer, opts BuildOptions) (Series, error) {
	if opts.Workers > 1 {
		return buildParallel(ctx, sampler, analyzer, opts)
	}

	b := NewBuilder(0)
	for opts.MaxFrames <= 0 || b.Len() < opts.MaxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok := sampler.Next()
		if !ok {
			break
		}
		m, err := analyzer.Analyze(f)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f.Index, err)
		}
		if b.Len() < traceFrames {
			hem.Tracef("frame %d t=%.3f roi=%.2f ref=%.2f high=%.1f%%", f.Index, m.T, m.ROIMean, m.RefMean, m.HighRatio)
		}
		b.Append(m)
	}

	hem.Diagf("series: %d samples from %d native frames", b.Len(), sampler.FramesRead())
	return b.Series(), nil
}

func buildParallel(ctx context.Context, sampler *l1frames.Sampler, analyzer FrameAnalyzer, opts BuildOptions) (Series, error) {
	batchSize := opts.Workers * 4
	b := NewBuilder(0)

	for {
		frames := make([]l1frames.SampledFrame, 0, batchSize)
		for len(frames) < batchSize {
			if opts.MaxFrames > 0 && b.Len()+len(frames) >= opts.MaxFrames {
				break
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			f, ok := sampler.Next()
			if !ok {
				break
			}
			frames = append(frames, f)
		}
		if len(frames) == 0 {
			break
		}

		results := make([]l2roi.FrameMetrics, len(frames))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i, f := range frames {
			i, f := i, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				m, err := analyzer.Analyze(f)
				if err != nil {
					return fmt.Errorf("frame %d: %w", f.Index, err)
				}
				results[i] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, m := range results {
			b.Append(m)
		}
		if len(frames) < batchSize {
			break
		}
	}

	hem.Diagf("series: %d samples from %d native frames (%d workers)", b.Len(), sampler.FramesRead(), opts.Workers)
	return b.Series(), nil
}
