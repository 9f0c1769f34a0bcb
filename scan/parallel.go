package scan

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kartik4091/pdfsanitize/ir/raw"
)

// scanParallel partitions the sorted object list across workers. Each
// worker fills a private registry; registries merge into the shared
// one only after the whole group joins, so no mutable state is shared
// mid-scan and the output is identical to a sequential pass.
func (s *Scanner) scanParallel(ctx context.Context, doc *raw.Document) (*Result, error) {
	refs := doc.SortedRefs()
	workers := s.config.Parallelism
	if workers > len(refs) {
		workers = len(refs)
	}
	if workers < 2 {
		return s.scanSequential(ctx, doc)
	}

	infoRef, hasInfo := doc.Info()
	parts := make([]*Result, workers)
	chunk := (len(refs) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(refs) {
			hi = len(refs)
		}
		part := refs[lo:hi]
		slot := w
		g.Go(func() error {
			local := &Result{Matches: make(map[raw.ObjectRef]Match)}
			for _, ref := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				m, scanned := s.scanObject(doc, ref, doc.Objects[ref], hasInfo && ref == infoRef)
				if !scanned {
					local.Stats.ObjectsSkipped++
					continue
				}
				local.Stats.ObjectsScanned++
				if m != nil {
					local.Matches[ref] = *m
					local.Stats.InstancesFound++
				}
			}
			parts[slot] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &Result{Matches: make(map[raw.ObjectRef]Match)}
	for _, part := range parts {
		if part == nil {
			continue
		}
		for ref, m := range part.Matches {
			merged.Matches[ref] = m
		}
		merged.Stats.ObjectsScanned += part.Stats.ObjectsScanned
		merged.Stats.ObjectsSkipped += part.Stats.ObjectsSkipped
		merged.Stats.InstancesFound += part.Stats.InstancesFound
	}
	return merged, nil
}
