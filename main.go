package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-memgrind/config"
	"go-memgrind/pkg/allocator"
	"go-memgrind/pkg/arena"
	"go-memgrind/pkg/memgrind"
	"go-memgrind/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	configs := config.New()
	parseFlags(configs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	report, err := memgrind.Run(ctx, configs.GrindConfig, newFactory(configs), logger.L)
	if err != nil {
		fatal(err)
	}
	if err := report.Print(os.Stdout); err != nil {
		fatal(err)
	}
}

func parseFlags(c *config.AppConfig) {
	flag.IntVar(&c.ArenaConfig.Capacity, "capacity", c.ArenaConfig.Capacity, "arena capacity in bytes")
	flag.StringVar(&c.ArenaConfig.MapFile, "mmap", c.ArenaConfig.MapFile, "back the arena with this file")
	flag.IntVar(&c.GrindConfig.Runs, "runs", c.GrindConfig.Runs, "runs per workload")
	flag.Int64Var(&c.GrindConfig.Seed, "seed", c.GrindConfig.Seed, "random seed")
	flag.IntVar(&c.GrindConfig.Parallel, "parallel", c.GrindConfig.Parallel, "workloads run at once, each on its own arena")
	flag.BoolVar(&c.GrindConfig.Quiet, "quiet", c.GrindConfig.Quiet, "do not log rejected allocator calls")
	flag.BoolVar(&c.GrindConfig.Dump, "dump", c.GrindConfig.Dump, "dump the arena layout when an allocator is released")
	flag.Parse()
}

// newFactory builds allocators as configured. With a mapped arena and
// parallel workloads, each workload gets its own file suffixed with its name.
func newFactory(c *config.AppConfig) memgrind.Factory {
	level := logrus.ErrorLevel
	if c.GrindConfig.Quiet {
		level = logrus.FatalLevel
	}
	diag := logger.New(os.Stderr, level)

	return func(workload string) (memgrind.Allocator, func() error, error) {
		var ar *arena.Arena
		var err error
		if c.ArenaConfig.MapFile != "" {
			filename := c.ArenaConfig.MapFile
			if workload != "" {
				filename = fmt.Sprintf("%s.%s", filename, workload)
			}
			ar, err = arena.Map(filename, c.ArenaConfig.Capacity)
		} else {
			ar, err = arena.New(c.ArenaConfig.Capacity)
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create arena")
		}

		a, err := allocator.New(ar, &allocator.Options{Logger: logger.Prefixed(diag, "allocator")})
		if err != nil {
			ar.Close()
			return nil, nil, errors.Wrap(err, "failed to create allocator")
		}

		release := func() error {
			if c.GrindConfig.Dump {
				if err := a.Dump(os.Stdout); err != nil {
					return err
				}
			}
			if err := ar.Sync(); err != nil {
				return err
			}
			return ar.Close()
		}
		return a, release, nil
	}
}

func fatal(val interface{}) {
	fmt.Println(val)
	os.Exit(1)
}
