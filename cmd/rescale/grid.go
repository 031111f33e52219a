package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/repository/layer"
)

func newGridCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "grid <kind>",
		Short: "Export a configured grid unit kind as GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exportGrid(domain.UnitKind(args[0]), out, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) exportGrid(kind domain.UnitKind, out string, stdout io.Writer) error {
	var source *domain.LayerSource
	for i := range a.cfg.UnitKinds {
		if a.cfg.UnitKinds[i].Kind == kind {
			source = &a.cfg.UnitKinds[i].Layer
			break
		}
	}
	if source == nil {
		return fmt.Errorf("unit kind %q is not configured", kind)
	}
	if source.Type != domain.LayerSourceGrid || source.Grid == nil {
		return fmt.Errorf("unit kind %q is a %s layer, not a grid", kind, source.Type)
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	n, err := layer.WriteGridGeoJSON(w, *source.Grid, source.CRS())
	if err != nil {
		return err
	}

	a.log.Info("Grid exported",
		zap.String("kind", kind.String()),
		zap.Int("cells", n),
		zap.String("output", out))
	return nil
}
