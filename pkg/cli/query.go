package cli

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cpdrouter/pkg/config"
	"cpdrouter/pkg/cpd"
	"cpdrouter/pkg/graphmodel"
	"cpdrouter/pkg/search"
)

func newQueryCmd() *cobra.Command {
	var (
		cpdPath         string
		graphPath       string
		problemPath     string
		startArg        uint64
		targetArg       uint64
		costCutoff      float64
		expansionCutoff uint32
		timeCutoffSec   float64
		hscale          float64
		qualityRatio    float64
		verify          bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Answer shortest-path queries against a compressed path database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil, cmd.Flags())
			if err != nil {
				return err
			}
			if cpdPath == "" {
				return fmt.Errorf("query: --cpd is required")
			}
			if graphPath == "" {
				graphPath = cpdPath + ".graph"
			}

			g, err := graphmodel.ReadGraphBinary(graphPath)
			if err != nil {
				return fmt.Errorf("query: load graph cache %s: %w", graphPath, err)
			}
			c, err := cpd.Load(cpdPath)
			if err != nil {
				return err
			}
			engine := search.NewEngine(g, c)

			opts := search.Options{
				CostCutoff:      costCutoff,
				ExpansionCutoff: expansionCutoff,
				TimeCutoffNano:  int64(timeCutoffSec * float64(time.Second)),
				HScale:          hscale,
				QualityRatio:    qualityRatio,
			}
			if !cmd.Flags().Changed("cost-cutoff") {
				opts.CostCutoff = cfg.Query.CostCutoff
			}
			if !cmd.Flags().Changed("expansion-cutoff") {
				opts.ExpansionCutoff = cfg.Query.ExpansionCutoff
			}
			if !cmd.Flags().Changed("time-cutoff") {
				opts.TimeCutoffNano = cfg.Query.TimeCutoffNano
			}
			if !cmd.Flags().Changed("hscale") {
				opts.HScale = cfg.Query.HScale
			}
			if !cmd.Flags().Changed("quality-ratio") {
				opts.QualityRatio = cfg.Query.QualityRatio
			}

			var pairs [][2]uint64
			if problemPath != "" {
				pairs, err = readProblemFile(problemPath)
				if err != nil {
					return err
				}
			} else {
				if len(args) == 2 {
					s, errS := strconv.ParseUint(args[0], 10, 64)
					t, errT := strconv.ParseUint(args[1], 10, 64)
					if errS != nil || errT != nil {
						return fmt.Errorf("query: expected two numeric vertex ids, got %v", args)
					}
					startArg, targetArg = s, t
				}
				pairs = [][2]uint64{{startArg, targetArg}}
			}

			var ws *cpd.Workspace
			if verify {
				ws = cpd.NewWorkspace(g)
			}

			for _, pair := range pairs {
				res, err := engine.GetPath(cmd.Context(), pair[0], pair[1], opts)
				if err != nil {
					log.WithError(err).WithFields(log.Fields{"start": pair[0], "target": pair[1]}).Error("query failed")
					continue
				}
				fields := log.Fields{
					"start":         pair[0],
					"target":        pair[1],
					"cost":          res.SumOfEdgeCosts,
					"path_len":      len(res.Path),
					"expansions":    res.Expansions,
					"touched":       res.Touched,
					"time_ns":       res.TimeNano,
					"cutoff_reason": res.Cutoff.String(),
					"suboptimal":    res.Suboptimal,
				}
				if verify && !res.Unreachable() {
					if sv, ok := g.ToGraphID(pair[0]); ok {
						ws.Run(g, sv)
						if tv, ok := g.ToGraphID(pair[1]); ok {
							ref := ws.Dist(tv)
							fields["reference_cost"] = ref
							fields["cost_delta"] = res.SumOfEdgeCosts - ref
							if res.SumOfEdgeCosts < ref-1e-6 {
								log.WithFields(fields).Error("verify: reported cost below reference shortest path")
							}
						}
					}
				}
				fmt.Printf("%d -> %d: cost=%.6f expansions=%d touched=%d cutoff=%s path=%v\n",
					pair[0], pair[1], res.SumOfEdgeCosts, res.Expansions, res.Touched, res.Cutoff, res.Path)
				log.WithFields(fields).Debug("query result")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cpdPath, "cpd", "", "path to the compressed path database")
	cmd.Flags().StringVar(&graphPath, "graph", "", "path to the graph binary cache (default: <cpd>.graph)")
	cmd.Flags().StringVar(&problemPath, "problem", "", "path to a queries file (one \"start target\" pair per line)")
	cmd.Flags().Uint64Var(&startArg, "start", 0, "start vertex id (single-query mode)")
	cmd.Flags().Uint64Var(&targetArg, "target", 0, "target vertex id (single-query mode)")
	cmd.Flags().Float64Var(&costCutoff, "cost-cutoff", math.Inf(1), "abandon search once f exceeds this cost")
	cmd.Flags().Uint32Var(&expansionCutoff, "expansion-cutoff", math.MaxUint32, "abandon search after this many expansions")
	cmd.Flags().Float64Var(&timeCutoffSec, "time-cutoff", 30, "abandon search after this many seconds")
	cmd.Flags().Float64Var(&hscale, "hscale", 1, "heuristic scale factor")
	cmd.Flags().Float64Var(&qualityRatio, "quality-ratio", 1, "accept an incumbent within this multiple of the certified lower bound")
	cmd.Flags().BoolVar(&verify, "verify", false, "cross-check each result against a reference Dijkstra run")

	return cmd
}

func readProblemFile(path string) ([][2]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("query: open problem file: %w", err)
	}
	defer f.Close()

	var pairs [][2]uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			log.WithField("line", line).Warn("query: skipping malformed problem line")
			continue
		}
		s, errS := strconv.ParseUint(fields[0], 10, 64)
		t, errT := strconv.ParseUint(fields[1], 10, 64)
		if errS != nil || errT != nil {
			log.WithField("line", line).Warn("query: skipping non-numeric problem line")
			continue
		}
		pairs = append(pairs, [2]uint64{s, t})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("query: read problem file: %w", err)
	}
	return pairs, nil
}
