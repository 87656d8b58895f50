package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talnish/iiswc21-rwalk/pkg/embedding"
	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/pipeline"
)

func (a *app) walkCommand() *cobra.Command {
	var graphPath, corpusPath string
	var symmetrize bool
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Sample temporal walks and write the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("graph") {
				a.cfg.Graph.Path = graphPath
			}
			if cmd.Flags().Changed("corpus") {
				a.cfg.Walk.CorpusPath = corpusPath
			}
			if cmd.Flags().Changed("symmetrize") {
				a.cfg.Graph.Symmetrize = symmetrize
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			res := &pipeline.Result{RunID: s.ID}
			if err := s.Walk(cmd.Context(), res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d walks over %d nodes written to %s\n", res.Walks, res.Nodes, a.cfg.Walk.CorpusPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "", "temporal edge list (src dst ts [weight])")
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "walk corpus output path")
	cmd.Flags().BoolVar(&symmetrize, "symmetrize", false, "add the reverse of every edge")
	return cmd
}

func (a *app) trainCommand() *cobra.Command {
	var corpusPath, textPath string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train embeddings on an existing walk corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("corpus") {
				a.cfg.Walk.CorpusPath = corpusPath
			}
			if cmd.Flags().Changed("output") {
				a.cfg.Output.TextPath = textPath
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			res := &pipeline.Result{RunID: s.ID}
			if err := s.Train(cmd.Context(), res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trained %d vectors of dimension %d\n", res.Embeddings.Len(), res.Embeddings.Dim())
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "walk corpus to train on")
	cmd.Flags().StringVarP(&textPath, "output", "o", "", "text embedding output path")
	return cmd
}

func (a *app) runCommand() *cobra.Command {
	var graphPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("graph") {
				a.cfg.Graph.Path = graphPath
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			res, err := s.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d nodes, %d vectors, manifest %s\n",
				res.RunID, res.Nodes, res.Embeddings.Len(), pipeline.ManifestPath(a.cfg.Walk.CorpusPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "", "temporal edge list (src dst ts [weight])")
	return cmd
}

func (a *app) inspectCommand() *cobra.Command {
	var binaryPath string
	cmd := &cobra.Command{
		Use:   "inspect <node>",
		Short: "Print the vector of a node from a binary embedding file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid node id %q", args[0])
			}
			if binaryPath == "" {
				binaryPath = a.cfg.Output.BinaryPath
			}
			if binaryPath == "" {
				return fmt.Errorf("no binary embedding file given (--binary or output.binary_path)")
			}
			m, _, err := embedding.ReadBinary(binaryPath)
			if err != nil {
				return err
			}
			vec, err := m.Lookup(graph.NodeID(id))
			if err != nil {
				return err
			}
			parts := make([]string, len(vec))
			for i, v := range vec {
				parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", id, strings.Join(parts, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&binaryPath, "binary", "", "binary embedding file")
	return cmd
}
