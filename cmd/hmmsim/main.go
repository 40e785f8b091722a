// Command hmmsim drives the hybrid DRAM/PCM memory manager from a JSON
// config file and an optional access trace, then reports (and
// optionally serves and persists) the run's statistics.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hmmsim/hmmsim/internal/config"
	"github.com/hmmsim/hmmsim/internal/engine"
	"github.com/hmmsim/hmmsim/internal/manager"
	"github.com/hmmsim/hmmsim/internal/partition"
	"github.com/hmmsim/hmmsim/internal/policy"
	"github.com/hmmsim/hmmsim/internal/simdevice"
	"github.com/hmmsim/hmmsim/internal/stats"
	"github.com/hmmsim/hmmsim/internal/statsdb"
	"github.com/hmmsim/hmmsim/internal/statsserver"
)

func main() {
	var (
		configPath string
		tracePath  string
		untilCycle uint64
		serve      bool
	)
	flag.StringVar(&configPath, "config", "hmmsim.json", "path to the simulator config")
	flag.StringVar(&tracePath, "trace", "", "optional access trace file ('pid vaddr R|W|I' per line)")
	flag.Uint64Var(&untilCycle, "until", 0, "stop the event loop at this simulation time (0 = run to completion)")
	flag.BoolVar(&serve, "serve", false, "keep running and serve live stats after the trace drains, until interrupted")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs a hybrid DRAM/PCM memory manager simulation.\n\nOPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(configPath, tracePath, untilCycle, serve); err != nil {
		log.Fatalf("hmmsim: %v", err)
	}
}

func run(configPath, tracePath string, untilCycle uint64, serve bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	layout, err := cfg.Layout()
	if err != nil {
		return fmt.Errorf("build layout: %w", err)
	}
	migCfg, err := cfg.MigrationConfig(int(layout.BlocksPerPage()))
	if err != nil {
		return fmt.Errorf("build migration config: %w", err)
	}
	periodType, err := cfg.PeriodTypeValue()
	if err != nil {
		return fmt.Errorf("build partition config: %w", err)
	}
	mgrCfg := manager.Config{
		DemoteTimeout:   cfg.DemoteTimeout,
		PartitionPeriod: cfg.PartitionPeriod,
		PeriodType:      periodType,
	}

	policies := make([]policy.Policy, 0, len(cfg.PolicyWeights))
	for name := range cfg.PolicyWeights {
		policies = append(policies, policy.NewWorkingSetPolicy(name))
	}
	policySet := policy.NewPolicySet(policies...)
	partitioner := partition.New(cfg.PartitionPeriod, periodType)
	for name, weight := range cfg.PolicyWeights {
		partitioner.SetWeight(name, weight)
	}

	eng := engine.New()

	var mgr *manager.Manager
	dev := simdevice.New(eng, layout, forwardingCallbacks{&mgr}, simdevice.DefaultLatencies)
	mgr = manager.New(layout, migCfg, mgrCfg, dev, dev, policySet, partitioner, eng)

	if cfg.PerPageStats {
		f, err := os.Create(cfg.PerPageStatsFilename)
		if err != nil {
			return fmt.Errorf("open per-page stats file: %w", err)
		}
		defer f.Close()
		mgr.SetPerPageStats(stats.NewPerPageRecorder(f))
	}

	if len(cfg.ProcessImages) > 0 {
		if err := mgr.Allocate(cfg.ProcessImages); err != nil {
			return fmt.Errorf("allocate process images: %w", err)
		}
	}

	mgr.ScheduleDemote(cfg.DemoteTimeout)
	mgr.SchedulePartition(cfg.PartitionPeriod)

	if tracePath != "" {
		if err := replayTrace(mgr, tracePath); err != nil {
			return fmt.Errorf("replay trace %s: %w", tracePath, err)
		}
	}

	var store *statsdb.Store
	if cfg.StatsDBPath != "" {
		store, err = statsdb.Open(cfg.StatsDBPath)
		if err != nil {
			return fmt.Errorf("open stats db: %w", err)
		}
		defer store.Close()
	}

	var srv *statsserver.Server
	if cfg.StatsServerAddr != "" {
		tlsCfg, err := statsserver.SelfSignedTLS([]string{"127.0.0.1", "localhost"}, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("generate stats tls config: %w", err)
		}
		var history statsserver.HistorySource
		if store != nil {
			history = statsserver.HistoryFunc(func(limit int) ([]statsserver.HistoryRecord, error) {
				recs, err := store.History(limit)
				if err != nil {
					return nil, err
				}
				out := make([]statsserver.HistoryRecord, len(recs))
				for i, r := range recs {
					out[i] = statsserver.HistoryRecord{SimTime: r.SimTime, Snapshot: r.Snapshot}
				}
				return out, nil
			})
		}
		srv = statsserver.New(cfg.StatsServerAddr, tlsCfg, mgr.Stats(), history)
		addr, err := srv.Start()
		if err != nil {
			return fmt.Errorf("start stats server: %w", err)
		}
		log.Printf("hmmsim: serving stats at https://%s/snapshot", addr)
		defer srv.Stop()
	}

	if untilCycle > 0 {
		eng.RunUntil(untilCycle)
	} else {
		eng.Run()
	}

	if store != nil {
		if err := store.Record(eng.Now(), mgr.Stats().Snapshot()); err != nil {
			return fmt.Errorf("record final stats: %w", err)
		}
	}

	printSnapshot(eng.Now(), mgr.Stats().Snapshot())

	if serve && srv != nil {
		waitForInterrupt()
	}
	return nil
}

// forwardingCallbacks lets a simdevice.Device be constructed before the
// *manager.Manager it reports completions to exists, mirroring the
// forward-declaration pattern the package's own mocks-backed test uses.
type forwardingCallbacks struct{ mgr **manager.Manager }

func (c forwardingCallbacks) DrainCompleted(frame uint64)            { (*c.mgr).DrainCompleted(frame) }
func (c forwardingCallbacks) FlushCompleted(addr uint64, dirty bool) { (*c.mgr).FlushCompleted(addr, dirty) }
func (c forwardingCallbacks) CopyCompleted(srcFrame uint64)          { (*c.mgr).CopyCompleted(srcFrame) }
func (c forwardingCallbacks) RemapCompleted(pageAddr uint64)         { (*c.mgr).RemapCompleted(pageAddr) }
func (c forwardingCallbacks) TagChangeCompleted(addr uint64)         { (*c.mgr).TagChangeCompleted(addr) }

// cpu is the minimal stallqueue.CPU a trace replay needs: a stable id.
type cpu int

func (c cpu) ID() int { return int(c) }

// replayTrace reads lines of the form "pid vaddr R|W|I" (I meaning an
// instruction fetch, implicitly a read) and issues one manager.Access
// per line. There is no CPU timing model behind this: every access is
// issued back-to-back, and the engine's own clock only advances when
// Run/RunUntil later drains the scheduled migration/partition events.
func replayTrace(mgr *manager.Manager, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return fmt.Errorf("line %d: want 'pid vaddr op', got %q", lineNo, line)
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: bad pid: %w", lineNo, err)
		}
		vaddr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return fmt.Errorf("line %d: bad vaddr: %w", lineNo, err)
		}
		read := true
		instrFetch := false
		switch strings.ToUpper(fields[2]) {
		case "R":
		case "W":
			read = false
		case "I":
			instrFetch = true
		default:
			return fmt.Errorf("line %d: unknown op %q", lineNo, fields[2])
		}
		if _, _, err := mgr.Access(cpu(pid), pid, vaddr, read, instrFetch); err != nil {
			return fmt.Errorf("line %d: access: %w", lineNo, err)
		}
	}
	return sc.Err()
}

func printSnapshot(now uint64, s stats.Snapshot) {
	fmt.Printf("simulation time: %d cycles\n", now)
	fmt.Printf("full migrations:    dram=%d pcm=%d\n", s.FullMigrations.Dram, s.FullMigrations.Pcm)
	fmt.Printf("partial migrations: dram=%d pcm=%d\n", s.PartialMigrations.Dram, s.PartialMigrations.Pcm)
	fmt.Printf("flushed blocks:     clean=%d dirty=%d\n", s.CleanFlushedBlocks, s.DirtyFlushedBlocks)
	fmt.Printf("tag changes:        %d\n", s.TagChanges)
	fmt.Printf("idle time:          %d cycles\n", s.IdleTime)
	fmt.Printf("avg migration table occupancy: %.2f\n", s.AvgMigrationEntries())
}

func waitForInterrupt() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
