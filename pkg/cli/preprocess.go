package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cpdrouter/pkg/config"
	"cpdrouter/pkg/cpd"
	"cpdrouter/pkg/graphmodel"
	"cpdrouter/pkg/order"
	"cpdrouter/pkg/roadnet"
)

func newPreprocessCmd() *cobra.Command {
	var (
		format    string
		input     string
		coFile    string
		grFile    string
		output    string
		threads   int
		bboxStr   string
		singapore bool
		kl        bool
		graphOut  string
	)

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Build a compressed path database from a graph source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil, cmd.Flags())
			if err != nil {
				return err
			}
			if threads <= 0 {
				threads = cfg.Build.Threads
			}
			if threads <= 0 {
				threads = runtime.GOMAXPROCS(0)
			}
			if output == "" {
				return fmt.Errorf("preprocess: --output is required")
			}
			if graphOut == "" {
				graphOut = output + ".graph"
			}

			if format == "" {
				format = inferFormat(input, coFile)
			}

			start := time.Now()
			g, err := loadGraph(cmd.Context(), format, input, coFile, grFile, bboxStr, singapore, kl)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"num_vertices": g.NumVertices, "num_edges": g.NumEdges()}).Info("graph loaded")

			if err := g.Validate(); err != nil {
				return err
			}

			component := graphmodel.LargestComponent(g)
			if len(component) != int(g.NumVertices) {
				log.WithFields(log.Fields{
					"component_size": len(component),
					"total_vertices": g.NumVertices,
				}).Info("filtering to largest connected component")
				g = graphmodel.FilterToComponent(g, component)
			}

			if err := graphmodel.WriteGraphBinary(graphOut, g); err != nil {
				return err
			}
			log.WithField("path", graphOut).Info("wrote graph binary cache")

			ord := order.ComputeDFSPreorder(g)

			log.WithField("threads", threads).Info("building compressed path database")
			onProgress := func(frac float64) {
				log.WithField("pct", int(frac*100)).Info("build progress")
			}
			c, err := cpd.Build(cmd.Context(), g, ord, cpd.BuildOptions{Threads: threads, OnProgress: onProgress})
			if err != nil {
				return fmt.Errorf("preprocess: build cpd: %w", err)
			}

			if err := cpd.Save(output, c); err != nil {
				return err
			}

			info, statErr := os.Stat(output)
			var size int64
			if statErr == nil {
				size = info.Size()
			}
			log.WithFields(log.Fields{
				"output":  output,
				"elapsed": time.Since(start).Round(time.Second).String(),
				"size_mb": fmt.Sprintf("%.1f", float64(size)/(1024*1024)),
			}).Info("preprocess complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "input format: dimacs, grid, or osm (inferred from --input/--co when omitted)")
	cmd.Flags().StringVar(&input, "input", "", "path to grid map or OSM .osm.pbf file")
	cmd.Flags().StringVar(&coFile, "co", "", "path to DIMACS .co coordinate file")
	cmd.Flags().StringVar(&grFile, "gr", "", "path to DIMACS .gr arc file")
	cmd.Flags().StringVar(&output, "output", "graph.cpd", "output compressed path database file")
	cmd.Flags().StringVar(&graphOut, "graph-output", "", "output graph binary cache path (default: <output>.graph)")
	cmd.Flags().IntVar(&threads, "threads", 0, "worker count (0 = config default / GOMAXPROCS)")
	cmd.Flags().StringVar(&bboxStr, "bbox", "", "OSM bounding box filter: minLat,minLng,maxLat,maxLng")
	cmd.Flags().BoolVar(&singapore, "singapore", false, "OSM shortcut for the Singapore bounding box")
	cmd.Flags().BoolVar(&kl, "kl", false, "OSM shortcut for the Selangor + Kuala Lumpur bounding box")

	return cmd
}

func inferFormat(input, coFile string) string {
	switch {
	case coFile != "":
		return "dimacs"
	case strings.HasSuffix(input, ".pbf"):
		return "osm"
	default:
		return "grid"
	}
}

func loadGraph(ctx context.Context, format, input, coFile, grFile, bboxStr string, singapore, kl bool) (*graphmodel.Graph, error) {
	switch format {
	case "dimacs":
		co, err := os.Open(coFile)
		if err != nil {
			return nil, fmt.Errorf("preprocess: open %s: %w", coFile, err)
		}
		defer co.Close()
		gr, err := os.Open(grFile)
		if err != nil {
			return nil, fmt.Errorf("preprocess: open %s: %w", grFile, err)
		}
		defer gr.Close()
		return graphmodel.LoadDIMACS(co, gr)

	case "grid":
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("preprocess: open %s: %w", input, err)
		}
		defer f.Close()
		return graphmodel.LoadGrid(f)

	case "osm":
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("preprocess: open %s: %w", input, err)
		}
		defer f.Close()

		var opts roadnet.ParseOptions
		switch {
		case kl:
			opts.BBox = roadnet.BBox{MinLat: 2.75, MaxLat: 3.5, MinLng: 101.2, MaxLng: 102.0}
		case singapore:
			opts.BBox = roadnet.BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}
		case bboxStr != "":
			var minLat, minLng, maxLat, maxLng float64
			if _, err := fmt.Sscanf(bboxStr, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
				return nil, fmt.Errorf("preprocess: invalid --bbox: %w", err)
			}
			opts.BBox = roadnet.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		}

		result, err := roadnet.Parse(ctx, f, opts)
		if err != nil {
			return nil, fmt.Errorf("preprocess: parse osm: %w", err)
		}
		return roadnet.Build(result), nil

	default:
		return nil, fmt.Errorf("preprocess: unknown format %q (want dimacs, grid, or osm)", format)
	}
}
