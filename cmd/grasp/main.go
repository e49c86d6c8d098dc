// Command grasp solves a TOPTW benchmark instance from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"toptw/internal/buildinfo"
	"toptw/internal/config"
	"toptw/internal/instance"
	"toptw/internal/opt"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("TOPTW_CONFIG"), "path to YAML config")
		iterations = flag.Int("iterations", 0, "construction passes (default from config)")
		rclSize    = flag.Int("rcl", 0, "restricted candidate list size (default from config)")
		policy     = flag.String("policy", "", "selection policy: random, fuzzy-best, fuzzy-alpha-cut")
		alpha      = flag.Float64("alpha", -1, "alpha-cut threshold in [0,1]")
		seed       = flag.Int64("seed", 0, "random seed")
		budget     = flag.Duration("budget", 0, "wall-clock budget, e.g. 5s")
		showInst   = flag.Bool("show-instance", false, "print the parsed instance before solving")
		asJSON     = flag.Bool("json", false, "print solution and metrics as JSON")
		verbose    = flag.Bool("v", false, "log every improvement")
		version    = flag.Bool("version", false, "print build information and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] instance.txt\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	o, err := cfg.GRASP.Options()
	if err != nil {
		log.WithError(err).Fatal("grasp options")
	}
	if *iterations > 0 {
		o.Iterations = *iterations
	}
	if *rclSize > 0 {
		o.RCLSize = *rclSize
	}
	if *policy != "" {
		if o.Policy, err = opt.ParsePolicy(*policy); err != nil {
			log.WithError(err).Fatal("policy")
		}
	}
	if *alpha >= 0 {
		o.Alpha = *alpha
	}
	if *seed != 0 {
		o.Seed = *seed
	}
	if *budget > 0 {
		o.TimeBudget = *budget
	}
	o.Progress = func(p opt.Progress) {
		if p.Improved {
			log.WithFields(log.Fields{"iteration": p.Iteration, "fitness": p.Fitness}).Debug("new best solution")
		}
	}

	path := flag.Arg(0)
	p, err := instance.ReadFile(path)
	if err != nil {
		log.WithError(err).Fatal("read instance")
	}
	if *showInst {
		if err := instance.Format(os.Stdout, p); err != nil {
			log.WithError(err).Fatal("print instance")
		}
		fmt.Println()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	log.WithFields(log.Fields{
		"instance": path, "pois": p.POICount(), "vehicles": p.VehicleCount(),
		"policy": o.Policy.String(), "rcl": o.RCLSize, "iterations": o.Iterations, "seed": o.Seed,
	}).Info("solving")
	start := time.Now()
	sol, m, err := opt.Solve(ctx, p, o)
	if err != nil {
		log.WithError(err).Fatal("solve")
	}
	if err := sol.Verify(p); err != nil {
		log.WithError(err).Fatal("solution failed verification")
	}
	log.WithFields(log.Fields{
		"fitness": sol.Fitness, "best_iteration": m.BestIteration, "stop": m.StopReason, "elapsed": time.Since(start),
	}).Info("done")

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"solution": sol, "metrics": m}); err != nil {
			log.WithError(err).Fatal("encode")
		}
		return
	}
	fmt.Print(sol.String())
	fmt.Printf("\nIterations: %d (best at %d, stop: %s)\n", m.Iterations, m.BestIteration, m.StopReason)
	fmt.Printf("Fitness best/avg/worst: %.2f / %.2f / %.2f\n", m.BestFitness, m.AverageFitness, m.WorstFitness)
}
