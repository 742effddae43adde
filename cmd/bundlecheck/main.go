package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ShivamCore/mlserve/internal/features"
	"github.com/ShivamCore/mlserve/internal/inference"
)

// bundlecheck loads every model bundle the server would load and reports its
// state; with -task and -input it also runs one prediction.
func main() {
	var (
		modelDir  = flag.String("models", "models", "Directory holding <task>_model.json artifacts")
		task      = flag.String("task", "", "Task to run a sample prediction against")
		inputPath = flag.String("input", "", "JSON file with one input record (\"-\" for stdin)")
		strict    = flag.Bool("strict", false, "Exit non-zero when any bundle is unavailable")
	)
	flag.Parse()

	if v := strings.TrimSpace(os.Getenv("MLSERVE_MODEL_DIR")); v != "" && !flagSet("models") {
		*modelDir = v
	}

	registry, err := inference.LoadRegistry(*modelDir)
	if err != nil {
		logrus.Fatalf("load models: %v", err)
	}

	missing := 0
	for _, d := range registry.All() {
		state := "loaded"
		if !d.Loaded() {
			state = "unavailable"
			missing++
		}
		fmt.Printf("%-8s %-12s %-26s features=%d\n", d.Endpoint().Task, state, d.ModelType(), d.Schema().Len())
	}

	if *task != "" {
		d, ok := registry.Get(*task)
		if !ok {
			logrus.Fatalf("unknown task %q (have %s)", *task, strings.Join(registry.Tasks(), ", "))
		}
		rec, err := readRecord(*inputPath)
		if err != nil {
			logrus.Fatalf("read input: %v", err)
		}
		result := d.Dispatch(rec)
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logrus.Fatalf("encode result: %v", err)
		}
		fmt.Println(string(out))
		if !result.Success {
			os.Exit(1)
		}
	}

	if *strict && missing > 0 {
		logrus.WithField("unavailable", missing).Error("bundles missing")
		os.Exit(2)
	}
}

func readRecord(path string) (features.Record, error) {
	rec := features.Record{}
	if path == "" {
		return rec, nil
	}
	f := os.Stdin
	if path != "-" {
		opened, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer opened.Close()
		f = opened
	}
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, nil
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
