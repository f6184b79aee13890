package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/viant/sqlite-vptree/internal/cities"
)

var (
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	distStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

func newKnnCmd(cmder *citiesCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knn",
		Short: "List the k nearest cities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := cmder.cfg.Query.K
			return cmder.run(cmd.Context(), func(ctx context.Context, tree cityTree) ([]cities.City, error) {
				// the query city is in the tree and comes back first
				return tree.nearest(ctx, cmder.query, k+1)
			}, fmt.Sprintf("%d nearest neighbors of %s:", k, cmder.query.Name))
		},
	}
	cmd.Flags().Int("k", 5, "Number of neighbors")
	return cmd
}

func newApproxCmd(cmder *citiesCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approx",
		Short: "List about k nearest cities visiting a bounded number of tree nodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, maxNodes := cmder.cfg.Query.K, cmder.cfg.Query.MaxNodes
			return cmder.run(cmd.Context(), func(ctx context.Context, tree cityTree) ([]cities.City, error) {
				return tree.approx(ctx, cmder.query, k+1, maxNodes)
			}, fmt.Sprintf("About %d nearest neighbors of %s (at most %d nodes):", k, cmder.query.Name, maxNodes))
		},
	}
	cmd.Flags().Int("k", 5, "Number of neighbors")
	cmd.Flags().Int("max-nodes", 64, "Maximum tree nodes visited")
	return cmd
}

func newWithinCmd(cmder *citiesCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "within",
		Short: "List the cities within a radius (km)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			radius := cmder.cfg.Query.Radius
			return cmder.run(cmd.Context(), func(ctx context.Context, tree cityTree) ([]cities.City, error) {
				return tree.within(ctx, cmder.query, radius)
			}, fmt.Sprintf("Cities within %.0fkm of %s:", radius, cmder.query.Name))
		},
	}
	cmd.Flags().Float64("radius", 1000, "Radius in km")
	return cmd
}

func newWalkCmd(cmder *citiesCommander) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Walk cities in order of distance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), func(ctx context.Context, tree cityTree) ([]cities.City, error) {
				var out []cities.City
				n := limit
				if n > 0 {
					n++ // the query city comes first
				}
				err := tree.walk(ctx, cmder.query, n, func(c cities.City) bool {
					out = append(out, c)
					return true
				})
				return out, err
			}, fmt.Sprintf("Cities by distance from %s:", cmder.query.Name))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of cities (0 for all)")
	return cmd
}

func (c *citiesCommander) run(ctx context.Context, query func(context.Context, cityTree) ([]cities.City, error), header string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tree, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := tree.close(ctx); err == nil {
			err = closeErr
		}
		c.reportMetrics()
	}()
	found, err := query(ctx, tree)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render(header))
	rank := 0
	for _, city := range found {
		if city.Name == c.query.Name {
			continue
		}
		rank++
		fmt.Printf("%s %s %s\n",
			rankStyle.Render(fmt.Sprintf("%3d.", rank)),
			nameStyle.Render(city.Name),
			distStyle.Render(fmt.Sprintf("(%.1fkm)", cities.Distance(c.query, city))),
		)
	}
	return nil
}
