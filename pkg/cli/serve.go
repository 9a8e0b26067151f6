package cli

import (
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cpdrouter/pkg/api"
	"cpdrouter/pkg/config"
	"cpdrouter/pkg/cpd"
	"cpdrouter/pkg/graphmodel"
	"cpdrouter/pkg/pipeservice"
	"cpdrouter/pkg/search"
)

func newServeCmd() *cobra.Command {
	var (
		cpdPath     string
		graphPath   string
		pipeName    string
		httpAddr    string
		corsOrigins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compressed path database queries over a named pipe and/or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil, cmd.Flags())
			if err != nil {
				return err
			}
			if cpdPath == "" {
				return fmt.Errorf("serve: --cpd is required")
			}
			if graphPath == "" {
				graphPath = cpdPath + ".graph"
			}
			if pipeName == "" && httpAddr == "" {
				return fmt.Errorf("serve: at least one of --pipe or --http is required")
			}

			g, err := graphmodel.ReadGraphBinary(graphPath)
			if err != nil {
				return fmt.Errorf("serve: load graph cache %s: %w", graphPath, err)
			}
			c, err := cpd.Load(cpdPath)
			if err != nil {
				return err
			}

			defaults := search.Options{
				CostCutoff:      cfg.Query.CostCutoff,
				ExpansionCutoff: cfg.Query.ExpansionCutoff,
				TimeCutoffNano:  cfg.Query.TimeCutoffNano,
				HScale:          cfg.Query.HScale,
				QualityRatio:    cfg.Query.QualityRatio,
			}

			if len(corsOrigins) == 0 {
				corsOrigins = cfg.Server.CORSOrigins
			}

			group, gctx := errgroup.WithContext(cmd.Context())

			if pipeName != "" {
				pipeEngine := search.NewEngine(g, c)
				svc := pipeservice.New(pipeName, pipeEngine, defaults)
				group.Go(func() error {
					return svc.Run(gctx)
				})
			}

			if httpAddr != "" {
				httpEngine := search.NewEngine(g, c)
				threads := cfg.Server.Threads
				if threads <= 0 {
					threads = runtime.NumCPU() * 2
				}
				httpCfg := api.DefaultConfig(httpAddr)
				httpCfg.MaxConcurrent = threads
				httpCfg.CORSOrigins = corsOrigins

				stats := api.StatsResponse{
					NumVertices: g.NumVertices,
					NumEdges:    g.NumEdges(),
					Threads:     threads,
				}
				handlers := api.NewHandlers(httpEngine, defaults, stats)
				srv := api.NewServer(httpCfg, handlers)

				group.Go(func() error {
					return api.ListenAndServe(srv)
				})
			}

			log.WithFields(log.Fields{"pipe": pipeName, "http": httpAddr}).Info("serve starting")
			return group.Wait()
		},
	}

	cmd.Flags().StringVar(&cpdPath, "cpd", "", "path to the compressed path database")
	cmd.Flags().StringVar(&graphPath, "graph", "", "path to the graph binary cache (default: <cpd>.graph)")
	cmd.Flags().StringVar(&pipeName, "pipe", "", "named-pipe base path (creates <pipe>.in and <pipe>.out)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allowed CORS origins for the HTTP surface")

	return cmd
}
