package cmd

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tupleflow/tupleflow/internal/concurrency"
	"github.com/tupleflow/tupleflow/pkg/config"
	"github.com/tupleflow/tupleflow/pkg/logger"
	"github.com/tupleflow/tupleflow/pkg/network"
	"github.com/tupleflow/tupleflow/pkg/reachability"
	"github.com/tupleflow/tupleflow/pkg/testutils"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// NewVerifyCommand returns the command checking the incremental closure against a closure
// computed from scratch on random workloads.
func NewVerifyCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "verify",
		Short: "Check the incremental closure against a from-scratch computation",
		Long: `Run random sequences of edge insertions and retractions, each through a bare engine and
through a transitive closure node of a container, and compare both relations with the closure
computed from scratch after every step.`,
		RunE: runVerify,
		Args: cobra.NoArgs,
	}
	bindCommonFlags(command)

	defaultConfig := config.DefaultConfig()
	flags := command.Flags()
	flags.Int("trials", defaultConfig.SelfCheck.Trials, "the number of random workloads")
	flags.Int("steps", defaultConfig.SelfCheck.Steps, "the number of edge operations of every workload")
	flags.Int("nodes", defaultConfig.SelfCheck.Nodes, "the number of graph nodes edges are drawn from")
	flags.Int("concurrency", defaultConfig.SelfCheck.Concurrency, "the number of workloads run at once")
	flags.Int64("seed", defaultConfig.SelfCheck.Seed, "the seed of the first workload, the following ones count up")

	return command
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	v := cfg.SelfCheck
	p := concurrency.NewPool(ctx, v.Concurrency)
	for trial := range v.Trials {
		seed := v.Seed + int64(trial)
		p.Go(func(ctx context.Context) error {
			return verifyTrial(ctx, cfg, log, seed)
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d trials of %d steps passed\n", v.Trials, v.Steps)
	return err
}

// verifyTrial runs the workload of seed and fails at the first step where the engine or the
// closure node disagrees with the baseline.
func verifyTrial(ctx context.Context, cfg *config.Config, log logger.Logger, seed int64) error {
	log = log.With(zap.Int64("seed", seed))
	ops := testutils.RandomEdgeOps(rand.New(rand.NewSource(seed)), int64(cfg.SelfCheck.Nodes), cfg.SelfCheck.Steps)

	engine := reachability.NewEngine()
	c, err := network.NewContainer(cfg.ContainerOptions(log)...)
	if err != nil {
		return err
	}
	edges := c.Add(network.NewInputNode(2))
	closure := network.NewTransitiveClosureNode()
	if err := c.AppendChild(edges, c.Add(closure)); err != nil {
		return err
	}

	live := map[reachability.Pair]int{}
	for step, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		fail := func(err error) error {
			return fmt.Errorf("seed %d step %d (%v %d -> %d): %w", seed, step, op.Direction, op.Source, op.Target, err)
		}

		if op.Direction == tuple.Insert {
			engine.InsertNode(op.Source)
			engine.InsertNode(op.Target)
			err = engine.InsertEdge(op.Source, op.Target)
		} else {
			err = engine.DeleteEdge(op.Source, op.Target)
		}
		if err != nil {
			return fail(err)
		}
		if err := c.Update(ctx, edges, op.Direction, op.Tuple()); err != nil {
			return fail(err)
		}
		if err := c.Drain(ctx); err != nil {
			return fail(err)
		}

		e := reachability.Pair{Source: op.Source, Target: op.Target}
		live[e] += op.Direction.Sign()
		if live[e] == 0 {
			delete(live, e)
		}
		var base []reachability.Pair
		for e := range live {
			base = append(base, e)
		}
		expected := reachability.Baseline(nil, base)

		if err := engine.CheckTcRelation(expected); err != nil {
			return fail(fmt.Errorf("engine: %w", err))
		}
		if err := closure.Engine().CheckTcRelation(expected); err != nil {
			return fail(fmt.Errorf("closure node: %w", err))
		}
	}

	log.Debug("trial passed", zap.Int("steps", len(ops)), zap.Int("edges", len(live)))
	return nil
}
