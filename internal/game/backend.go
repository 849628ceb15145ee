package game

import (
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// VelocityBackend computes the per-agent final velocities of one tick
// from the prepared work items. Implementations must treat every input
// as immutable.
type VelocityBackend interface {
	Name() string
	// ComputeVelocities fills out[i] for items[i].
	ComputeVelocities(c *Core, items []workItem, out []workResult)
}

// selectBackend resolves the configured backend name. The gpu backend is
// accepted for configuration compatibility but dispatches to the CPU
// implementation; there is no GPU runtime in this build.
func selectBackend(name string, log *logrus.Entry) VelocityBackend {
	if name == "gpu" {
		log.Warn("gpu velocity backend unavailable, falling back to cpu")
	}
	return &cpuBackend{}
}

// cpuBackend fans the velocity computation out over a bounded fork-join
// worker group.
type cpuBackend struct{}

func (b *cpuBackend) Name() string { return "cpu" }

func (b *cpuBackend) ComputeVelocities(c *Core, items []workItem, out []workResult) {
	limit := runtime.NumCPU()
	if limit > MaxMoveTasks {
		limit = MaxMoveTasks
	}

	var g errgroup.Group
	g.SetLimit(limit)

	const batch = 16
	for start := 0; start < len(items); start += batch {
		start := start
		end := start + batch
		if end > len(items) {
			end = len(items)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = c.computeAgent(&items[i])
			}
			return nil
		})
	}
	// Worker bodies cannot fail; the group is used purely for the
	// bounded fork-join.
	_ = g.Wait()
}
