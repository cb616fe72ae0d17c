package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lu-zero/portage-resolver/pkg/resolver"
)

func NewResolveCommand() *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "resolve <world.yaml>",
		Short: "Resolves a world file into an ordered install plan",
		Long: `Resolves a world file into an ordered install plan. The world file
describes the repository, the installed set, the USE configuration, and the
root atoms, all structured:

packages:
  - name: dev-lang/python
    version: 3.12.5
    slot: "3.12"
  - name: app-misc/frob
    version: "1.0"
    rdepend:
      - atom:
          name: dev-lang/python
          slotOp: "*"
roots:
  - name: app-misc/frob
`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("file (%s) not found", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], trace)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "print the engine's search trace")
	return cmd
}

func run(path string, trace bool) error {
	worldFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening world file (%s): %w", path, err)
	}
	defer worldFile.Close()

	world, err := LoadWorld(worldFile)
	if err != nil {
		return fmt.Errorf("error parsing world file (%s): %w", path, err)
	}

	repo, err := world.repository()
	if err != nil {
		return err
	}
	options, err := world.providerOptions()
	if err != nil {
		return err
	}
	provider, err := resolver.NewProvider(repo, options...)
	if err != nil {
		return err
	}

	roots := make([]resolver.Requirement, 0, len(world.Roots))
	for _, spec := range world.Roots {
		atom, err := spec.atom()
		if err != nil {
			return err
		}
		req, err := provider.InternRequirement(atom)
		if err != nil {
			return err
		}
		roots = append(roots, req)
	}

	problem := &resolver.Problem{Provider: provider, Roots: roots}
	if trace {
		problem.Trace = os.Stderr
	}

	solution, err := problem.Resolve(context.Background())
	var unsat *resolver.UnsatisfiableError
	if errors.As(err, &unsat) {
		fmt.Println("no solution found:")
		for _, conflict := range unsat.Conflicts {
			fmt.Printf("  %s\n", conflict)
		}
		return nil
	}
	if err != nil {
		return err
	}

	graph, err := solution.DependencyGraph()
	if err != nil {
		return err
	}
	order, err := graph.InstallOrder()
	if err != nil {
		return err
	}

	fmt.Println("install order:")
	pool := provider.Pool()
	for _, id := range order {
		fmt.Printf("  %s\n", pool.Solvable(id))
	}
	for _, block := range provider.AdvisoryBlocks() {
		fmt.Printf("warning: %s weakly blocks %s\n",
			pool.Solvable(block.Subject), pool.Solvable(block.Blocked))
	}
	return nil
}
