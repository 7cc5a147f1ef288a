// Package memgrind exercises an allocator with the classic memgrind
// workloads and reports how long each one takes on average.
package memgrind

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go-memgrind/config"
	"go-memgrind/pkg/allocator"
	"go-memgrind/util/helpers"
	"go-memgrind/util/logger"
	"go-memgrind/util/timer"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrLeak = errors.New("workload left memory allocated")

// Allocator is the part of *allocator.Allocator the workloads drive.
type Allocator interface {
	Allocate(size int, loc allocator.Location) (allocator.Pointer, error)
	Free(p allocator.Pointer, loc allocator.Location) error
	Bytes(p allocator.Pointer) ([]byte, error)
	Start() allocator.Pointer
	MaxRequest() int
	Stats() (allocator.Stats, error)
	Verify() error
}

// Factory creates the allocator a workload runs on. In sequential mode it is
// called once with an empty name and the allocator is shared by all
// workloads; in parallel mode it is called once per workload. release is
// called when the allocator is no longer used.
type Factory func(workload string) (a Allocator, release func() error, err error)

type Result struct {
	Workload  string
	Runs      int
	Mean      time.Duration
	Min       time.Duration
	Max       time.Duration
	Rejected  map[allocator.Kind]int
	FinalStat allocator.Stats
}

type Report struct {
	Started time.Time
	Results []Result
}

// Run executes every workload cfg.Runs times. Each run is followed by a
// layout check; a corrupt or leaking allocator aborts the whole run.
func Run(ctx context.Context, cfg *config.GrindConfig, newAllocator Factory, log logrus.FieldLogger) (*Report, error) {
	if log == nil {
		log = logger.L
	}
	log = logger.Prefixed(log, "memgrind")

	report := &Report{
		Started: time.Now(),
		Results: make([]Result, len(Workloads)),
	}

	if cfg.Parallel <= 1 {
		a, release, err := newAllocator("")
		if err != nil {
			return nil, errors.Wrap(err, "failed to create allocator")
		}
		defer release()

		for i, w := range Workloads {
			res, err := runWorkload(ctx, cfg, w, a, cfg.Seed+int64(i), log)
			if err != nil {
				return nil, err
			}
			report.Results[i] = res
		}
		return report, nil
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Parallel)
	for i, w := range Workloads {
		i, w := i, w
		group.Go(func() error {
			a, release, err := newAllocator(w.Name)
			if err != nil {
				return errors.Wrapf(err, "failed to create allocator for workload %s", w.Name)
			}
			defer release()

			res, err := runWorkload(ctx, cfg, w, a, cfg.Seed+int64(i), log)
			if err != nil {
				return err
			}
			report.Results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func runWorkload(
	ctx context.Context,
	cfg *config.GrindConfig,
	w Workload,
	a Allocator,
	seed int64,
	log logrus.FieldLogger,
) (Result, error) {
	g := newGrinder(a, seed)

	durations, err := timer.Repeat(cfg.Runs, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.Run(g)
		if g.err != nil {
			return g.err
		}
		return check(a)
	})
	if err != nil {
		return Result{}, errors.Wrapf(err, "workload %s failed after %d runs", w.Name, len(durations))
	}

	stats, err := a.Stats()
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to collect stats for workload %s", w.Name)
	}

	res := Result{
		Workload:  w.Name,
		Runs:      len(durations),
		Rejected:  g.rejected,
		FinalStat: stats,
	}
	if len(durations) > 0 {
		res.Mean = time.Duration(helpers.Mean(durations...))
		res.Min = helpers.Min(durations...)
		res.Max = helpers.Max(durations...)
	}

	log.WithFields(logrus.Fields{
		"workload": w.Name,
		"runs":     res.Runs,
		"mean":     res.Mean,
		"rejected": sumRejected(res.Rejected),
	}).Info("workload finished")
	return res, nil
}

// check fails when the arena is corrupt or not fully released.
func check(a Allocator) error {
	if err := a.Verify(); err != nil {
		return err
	}
	stats, err := a.Stats()
	if err != nil {
		return err
	}
	if stats.ActiveBlocks != 0 || stats.FreeBlocks != 1 {
		return errors.Wrapf(ErrLeak, "%d active blocks, %d free blocks", stats.ActiveBlocks, stats.FreeBlocks)
	}
	return nil
}

func sumRejected(rejected map[allocator.Kind]int) int {
	total := 0
	for _, n := range rejected {
		total += n
	}
	return total
}

// Print writes the mean runtime of every workload, followed by the calls the
// allocator rejected while running it.
func (r *Report) Print(w io.Writer) error {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "memgrind started at %s\n", helpers.FormatTime(r.Started))
	for _, res := range r.Results {
		fmt.Fprintf(&sb, "Mean runtime for Workload %s: %f seconds\n", res.Workload, helpers.Seconds(float64(res.Mean)))
	}

	for _, res := range r.Results {
		if len(res.Rejected) == 0 {
			continue
		}
		kinds := make([]allocator.Kind, 0, len(res.Rejected))
		for k := range res.Rejected {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, res.Rejected[k]))
		}
		fmt.Fprintf(&sb, "Rejected calls in Workload %s: %s\n", res.Workload, strings.Join(parts, ", "))
	}

	_, err := io.WriteString(w, sb.String())
	return errors.Wrap(err, "failed to write report")
}
