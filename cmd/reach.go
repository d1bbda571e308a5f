package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tupleflow/tupleflow/pkg/network"
	"github.com/tupleflow/tupleflow/pkg/reachability"
)

const unsetNode = -1

// NewReachCommand returns the command maintaining the closure of a facts file.
func NewReachCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reach",
		Short: "Maintain the transitive closure of a facts file and query it",
		Long: `Load the edges of a facts file into a transitive closure node, apply its retractions,
and print the reachable pairs. With --from and --to a witness path is printed instead.`,
		RunE: runReach,
		Args: cobra.NoArgs,
	}
	bindCommonFlags(command)

	flags := command.Flags()
	flags.String("facts", "", "the YAML or JSON file holding 'edges' and 'retract' lists")
	flags.Int64("from", unsetNode, "the source of the witness path to print")
	flags.Int64("to", unsetNode, "the target of the witness path to print")
	flags.Bool("components", false, "print the strongly connected components")
	flags.Bool("check", false, "verify the maintained closure against one computed from scratch")
	command.MarkFlagsRequiredTogether("from", "to")
	_ = command.MarkFlagRequired("facts")

	return command
}

func runReach(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	path, _ := flags.GetString("facts")
	from, _ := flags.GetInt64("from")
	to, _ := flags.GetInt64("to")
	components, _ := flags.GetBool("components")
	check, _ := flags.GetBool("check")

	facts, err := LoadFacts(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := network.NewContainer(cfg.ContainerOptions(log)...)
	if err != nil {
		return err
	}
	edges := c.Add(network.NewInputNode(2))
	closure := network.NewTransitiveClosureNode()
	if err := c.AppendChild(edges, c.Add(closure)); err != nil {
		return err
	}

	err = c.Transaction(ctx, func(tx *network.Tx) error {
		for _, op := range facts.Ops() {
			if err := tx.Update(ctx, edges, op.Direction, op.Tuple()); err != nil {
				return fmt.Errorf("failed to apply %v of edge %d -> %d: %w", op.Direction, op.Source, op.Target, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	engine := closure.Engine()
	log.Info("facts loaded",
		zap.String("file", path),
		zap.Int("nodes", engine.NodeCount()),
		zap.Int("edges", engine.EdgeCount()),
		zap.Uint64("revision", uint64(closure.Revision())))

	out := cmd.OutOrStdout()
	if from != unsetNode || to != unsetNode {
		if err := printPath(out, engine, from, to); err != nil {
			return err
		}
	} else {
		for _, p := range engine.Relation().Sorted() {
			fmt.Fprintf(out, "%d %d\n", p.Source, p.Target)
		}
	}

	if components {
		for _, members := range engine.Components() {
			fmt.Fprintf(out, "component %s\n", joinNodes(members))
		}
	}

	if check {
		expected := reachability.Baseline(engine.Nodes(), engine.Edges())
		if err := engine.CheckTcRelation(expected); err != nil {
			return err
		}
		fmt.Fprintln(out, "closure verified")
	}
	return nil
}

func printPath(out io.Writer, engine *reachability.Engine, from, to int64) error {
	path, ok, err := engine.ReachabilityPath(from, to)
	var notFound *reachability.NodeNotFoundError
	if errors.As(err, &notFound) {
		ok, err = false, nil
	}
	if err != nil {
		return err
	}
	if !ok {
		_, err = fmt.Fprintf(out, "no path %d -> %d\n", from, to)
		return err
	}
	_, err = fmt.Fprintf(out, "path %d -> %d: %s\n", from, to, joinNodes(path))
	return err
}

func joinNodes(nodes []int64) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, " ")
}
