// Command mockgen writes synthetic issue histories and a matching workflow
// file that `flowcast extract --input` can read.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flowcast/cmd/mockgen/engine"
)

func main() {
	var cfg engine.GeneratorConfig
	flag.StringVar(&cfg.Scenario, "scenario", "mild", "delivery pattern: mild, chaos, drift")
	flag.StringVar(&cfg.Distribution, "distribution", "uniform", "cycle time distribution: uniform, weibull")
	flag.IntVar(&cfg.Count, "count", 200, "number of issues")
	flag.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	outDir := flag.String("out", "./.mock", "output directory")
	name := flag.String("name", "MOCK", "file base name")
	flag.Parse()
	cfg.Now = time.Now()

	histories := engine.Generate(cfg)
	if err := engine.Save(*outDir, *name, histories); err != nil {
		fmt.Fprintf(os.Stderr, "mockgen: %v\n", err)
		os.Exit(1)
	}

	data := filepath.Join(*outDir, *name+".json")
	workflow := filepath.Join(*outDir, *name+"_workflow.yaml")
	fmt.Printf("%d %s issues (seed %d)\n  %s\n  %s\n", len(histories), cfg.Scenario, cfg.Seed, data, workflow)
	fmt.Printf("try: flowcast extract %s cycle.csv --input %s\n", workflow, data)
}
