// Command coronet-sim drives a small in-process MPI-style simulation:
// every rank named on the command line runs bring-up, a barrier, and a
// modeled compute step over the in-memory reference host, printing
// live per-rank progress to the terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/apoorvam/goterminal"

	"github.com/glycerine/coronet/config"
	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/internal/xlog"
	"github.com/glycerine/coronet/mpi"
	"github.com/glycerine/coronet/mpiapp"
	"github.com/glycerine/coronet/simhost"
	"github.com/glycerine/coronet/simhost/refhost"
)

var log = xlog.New("coronet-sim")

type registryAdapter struct{ r *refhost.Registry }

func (a registryAdapter) NewSocket() simhost.RawSocket { return a.r.NewSocket() }

func noticeControlC(host *refhost.Host, t0 time.Time) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)
	go func() {
		for range sigChan {
			fmt.Printf("\ncoronet-sim: interrupted after %v of simulated time\n", host.Now().Sub(t0))
			os.Exit(0)
		}
	}()
}

func parseAddrs(spec string) (map[uint64]string, error) {
	addrs := make(map[uint64]string)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("coronet-sim: malformed rank entry %q, want rank=addr", entry)
		}
		rank, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("coronet-sim: bad rank in %q: %w", entry, err)
		}
		addrs[rank] = parts[1]
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("coronet-sim: no ranks given")
	}
	return addrs, nil
}

func main() {
	ranksFlag := flag.String("ranks", "0=tcp://host0:9000,1=tcp://host1:9000,2=tcp://host2:9000", "comma-separated rank=addr list")
	configPath := flag.String("config", "", "path to a JSON config file (defaults applied for absent fields)")
	quiet := flag.Bool("quiet", false, "suppress live progress output")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(xlog.LevelDebug)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "coronet-sim: %v\n", err)
			os.Exit(1)
		}
	}

	addrs, err := parseAddrs(*ranksFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coronet-sim: %v\n", err)
		os.Exit(1)
	}

	t0 := time.Unix(0, 0)
	host := refhost.New(t0)
	noticeControlC(host, t0)

	table, err := mpiapp.NewAddrTable(addrs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coronet-sim: %v\n", err)
		os.Exit(1)
	}
	reg := registryAdapter{refhost.NewRegistry(host)}

	var runSeed [32]byte
	copy(runSeed[:], []byte("coronet-sim-default-run-seed-0000"))

	apps := make(map[uint64]*mpiapp.Application, len(addrs))
	for rank := range addrs {
		apps[rank] = mpiapp.New(mpiapp.Config{
			Rank:    rank,
			Addrs:   table,
			Clock:   host,
			Reg:     reg,
			RunSeed: runSeed,
		})
	}

	var term *goterminal.Writer
	if !*quiet {
		term = goterminal.New(os.Stdout)
	}

	log.Infof("bringing up %d ranks (pause_threshold=%.2f resume_threshold=%.2f)",
		len(addrs), cfg.PFCPauseThreshold, cfg.PFCResumeThreshold)

	bringups := make(map[uint64]coro.Operation[struct{}], len(apps))
	for rank, app := range apps {
		bringups[rank] = app.Bringup()
	}
	host.RunAll()

	for rank, op := range bringups {
		if _, err := op.Result(); err != nil {
			fmt.Fprintf(os.Stderr, "coronet-sim: rank %d bring-up failed: %v\n", rank, err)
			os.Exit(1)
		}
	}

	runs := make(map[uint64]coro.Operation[struct{}], len(apps))
	for rank, app := range apps {
		runs[rank] = app.Run([]mpiapp.UserFunc{
			func(a *mpiapp.Application) coro.Operation[struct{}] {
				return mpi.Barrier(a.World())
			},
			func(a *mpiapp.Application) coro.Operation[struct{}] {
				return a.Compute(5 * time.Millisecond)
			},
		})
	}

	for !allDone(runs) {
		if !host.Advance() {
			break
		}
		if term != nil {
			term.Clear()
			term.Write([]byte(progressLine(host, apps, runs)))
			term.Print()
		}
	}
	if term != nil {
		term.Clear()
		term.Print()
	}

	for rank, op := range runs {
		if _, err := op.Result(); err != nil {
			fmt.Fprintf(os.Stderr, "coronet-sim: rank %d run failed: %v\n", rank, err)
			os.Exit(1)
		}
	}

	for _, app := range apps {
		if err := app.Shutdown(); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}

	fmt.Printf("coronet-sim: %d ranks completed at simulated t=%v\n", len(addrs), host.Now().Sub(t0))
}

func allDone(runs map[uint64]coro.Operation[struct{}]) bool {
	for _, op := range runs {
		if !op.Done() {
			return false
		}
	}
	return true
}

func progressLine(host *refhost.Host, apps map[uint64]*mpiapp.Application, runs map[uint64]coro.Operation[struct{}]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%v pending=%d\n", host.Now(), host.Pending())
	for rank, op := range runs {
		status := "running"
		if op.Done() {
			status = "done"
		}
		fmt.Fprintf(&b, "  rank %d: %s\n", rank, status)
	}
	return b.String()
}
