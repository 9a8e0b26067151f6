// Package pipeservice runs a long-lived query loop over a pair of named
// pipes: JSON queries arrive one per line on <name>.in, JSON solutions are
// written one per line to <name>.out. No third-party pipe/IPC library
// appears anywhere in the retrieval pack, so this is built directly on
// syscall.Mkfifo and os.OpenFile rather than reaching for one.
package pipeservice

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/search"
)

// Query mirrors the HTTP route request shape, so the same JSON documents
// work over either surface.
type Query struct {
	StartID  uint64          `json:"start_id"`
	TargetID uint64          `json:"target_id"`
	Options  *OptionsOverlay `json:"options,omitempty"`
}

// OptionsOverlay carries only the fields a caller wants to override on top
// of the service's default search.Options.
type OptionsOverlay struct {
	CostCutoff      *float64 `json:"cost_cutoff,omitempty"`
	ExpansionCutoff *uint32  `json:"expansion_cutoff,omitempty"`
	TimeCutoffNano  *int64   `json:"time_cutoff_nano,omitempty"`
	HScale          *float64 `json:"hscale,omitempty"`
	QualityRatio    *float64 `json:"quality_ratio,omitempty"`
}

// Solution mirrors search.Result, plus an error string on failure so a
// malformed or unreachable query doesn't kill the service loop.
type Solution struct {
	SumOfEdgeCosts float64  `json:"sum_of_edge_costs,omitempty"`
	Path           []uint64 `json:"path,omitempty"`
	TimeNano       int64    `json:"time_nano"`
	Expansions     uint32   `json:"expansions"`
	Inserted       uint32   `json:"inserted"`
	Touched        uint32   `json:"touched"`
	Updated        uint32   `json:"updated"`
	CutoffReason   string   `json:"cutoff_reason"`
	Suboptimal     bool     `json:"suboptimal,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Service owns a pair of FIFOs at <name>.in and <name>.out and answers
// queries against a fixed search.Engine.
type Service struct {
	name     string
	engine   *search.Engine
	defaults search.Options
}

// New returns a Service that will create its FIFOs under name (e.g.
// "/tmp/cpd" produces "/tmp/cpd.in" and "/tmp/cpd.out").
func New(name string, engine *search.Engine, defaults search.Options) *Service {
	return &Service{name: name, engine: engine, defaults: defaults}
}

func (s *Service) inPath() string  { return s.name + ".in" }
func (s *Service) outPath() string { return s.name + ".out" }

// Run creates both FIFOs, blocks servicing queries until ctx is cancelled
// or SIGINT/SIGTERM arrives, then removes both FIFOs before returning.
func (s *Service) Run(ctx context.Context) error {
	if err := s.makeFifo(s.inPath()); err != nil {
		return err
	}
	if err := s.makeFifo(s.outPath()); err != nil {
		os.Remove(s.inPath())
		return err
	}
	defer s.cleanup()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{"in": s.inPath(), "out": s.outPath()}).Info("pipe service ready")

	// Opening a FIFO for reading blocks until a writer opens the other
	// end; run it in a goroutine so a signal during that wait still stops
	// the service promptly.
	type openResult struct {
		in  *os.File
		out *os.File
		err error
	}
	opened := make(chan openResult, 1)
	go func() {
		in, err := os.OpenFile(s.inPath(), os.O_RDONLY, 0)
		if err != nil {
			opened <- openResult{err: err}
			return
		}
		out, err := os.OpenFile(s.outPath(), os.O_WRONLY, 0)
		if err != nil {
			in.Close()
			opened <- openResult{err: err}
			return
		}
		opened <- openResult{in: in, out: out}
	}()

	var in, out *os.File
	select {
	case <-sigCtx.Done():
		return nil
	case r := <-opened:
		if r.err != nil {
			return cpderr.New(cpderr.KindIO, "pipeservice.Run", r.err)
		}
		in, out = r.in, r.out
	}
	defer in.Close()
	defer out.Close()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 1<<16), 1<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case sig := <-sigCtx.Done():
			_ = sig
			log.Info("pipe service shutting down on signal")
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return cpderr.New(cpderr.KindIO, "pipeservice.Run", err)
				}
				return nil
			}
			s.handleLine(sigCtx, line, out)
		}
	}
}

func (s *Service) handleLine(ctx context.Context, line string, out *os.File) {
	var q Query
	sol := Solution{}
	if err := json.Unmarshal([]byte(line), &q); err != nil {
		sol.Error = fmt.Sprintf("malformed query: %v", err)
		s.writeSolution(out, sol)
		return
	}

	opts := applyOverlay(s.defaults, q.Options)
	res, err := s.engine.GetPath(ctx, q.StartID, q.TargetID, opts)
	if err != nil {
		sol.Error = err.Error()
		s.writeSolution(out, sol)
		return
	}

	sol = Solution{
		SumOfEdgeCosts: res.SumOfEdgeCosts,
		Path:           res.Path,
		TimeNano:       res.TimeNano,
		Expansions:     res.Expansions,
		Inserted:       res.Inserted,
		Touched:        res.Touched,
		Updated:        res.Updated,
		CutoffReason:   res.Cutoff.String(),
		Suboptimal:     res.Suboptimal,
	}
	if res.Unreachable() {
		sol.Error = "unreachable"
	}
	s.writeSolution(out, sol)

	log.WithFields(log.Fields{
		"start_id":      q.StartID,
		"target_id":     q.TargetID,
		"expansions":    res.Expansions,
		"touched":       res.Touched,
		"time_ns":       res.TimeNano,
		"cutoff_reason": res.Cutoff.String(),
	}).Debug("pipe query served")
}

func (s *Service) writeSolution(out *os.File, sol Solution) {
	b, err := json.Marshal(sol)
	if err != nil {
		log.WithError(err).Error("pipe service: marshal solution")
		return
	}
	b = append(b, '\n')
	if _, err := out.Write(b); err != nil {
		log.WithError(err).Error("pipe service: write solution")
	}
}

func applyOverlay(base search.Options, o *OptionsOverlay) search.Options {
	if o == nil {
		return base
	}
	if o.CostCutoff != nil {
		base.CostCutoff = *o.CostCutoff
	}
	if o.ExpansionCutoff != nil {
		base.ExpansionCutoff = *o.ExpansionCutoff
	}
	if o.TimeCutoffNano != nil {
		base.TimeCutoffNano = *o.TimeCutoffNano
	}
	if o.HScale != nil {
		base.HScale = *o.HScale
	}
	if o.QualityRatio != nil {
		base.QualityRatio = *o.QualityRatio
	}
	return base
}

func (s *Service) makeFifo(path string) error {
	os.Remove(path) // stale FIFO from a prior crashed run
	if err := syscall.Mkfifo(path, 0o600); err != nil {
		return cpderr.New(cpderr.KindIO, "pipeservice.makeFifo", fmt.Errorf("mkfifo %s: %w", path, err))
	}
	return nil
}

func (s *Service) cleanup() {
	os.Remove(s.inPath())
	os.Remove(s.outPath())
	log.Info("pipe service fifos removed")
}
