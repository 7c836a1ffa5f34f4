package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cwbudde/geneticweights/internal/data"
	"github.com/cwbudde/geneticweights/internal/interval"
	"github.com/cwbudde/geneticweights/internal/nn"
	"github.com/cwbudde/geneticweights/internal/search"
	"github.com/cwbudde/geneticweights/internal/store"
	"github.com/cwbudde/geneticweights/internal/tune"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	dataPath       string
	labelColumn    int
	csvHeader      bool
	standardize    bool
	blobsN         int
	blobsClasses   int
	blobsSpread    float64
	hidden         []int
	activation     string
	engineName     string
	partitions     int
	population     int
	maxStale       int
	rounds         int
	intervalLow    float64
	intervalHigh   float64
	seeding        string
	batchPolicy    string
	batchSize      int
	maxGenerations uint
	seed           int64
	verbose        bool
	noProgress     bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a network by interval refinement",
	Long: `Trains a fully connected classifier without gradients and records the run.
Settings are read from --config (TOML) when given; flags set on the command line
take precedence over the file.`,
	RunE: runTrain,
}

func init() {
	defaults := tune.DefaultConfig()

	trainCmd.Flags().StringVar(&configPath, "config", "", "TOML file with tuning settings")
	trainCmd.Flags().StringVar(&dataPath, "data", "", "CSV dataset path (empty = synthetic blobs)")
	trainCmd.Flags().IntVar(&labelColumn, "label-column", -1, "CSV label column (negative counts from the end)")
	trainCmd.Flags().BoolVar(&csvHeader, "header", false, "CSV has a header row")
	trainCmd.Flags().BoolVar(&standardize, "standardize", true, "Standardize features to zero mean and unit variance")
	trainCmd.Flags().IntVar(&blobsN, "blobs", 300, "Number of synthetic examples")
	trainCmd.Flags().IntVar(&blobsClasses, "classes", 3, "Number of synthetic classes")
	trainCmd.Flags().Float64Var(&blobsSpread, "spread", 0.5, "Spread of synthetic blobs")
	trainCmd.Flags().IntSliceVar(&hidden, "hidden", []int{8}, "Hidden layer sizes")
	trainCmd.Flags().StringVar(&activation, "activation", string(nn.ReLU), "Hidden activation: relu, step")
	trainCmd.Flags().StringVar(&engineName, "engine", "genetic", "Search engine: genetic, mayfly")
	trainCmd.Flags().IntVar(&partitions, "partitions", defaults.Partitions, "Slices per interval and round")
	trainCmd.Flags().IntVar(&population, "pop", defaults.PopulationSize, "Population size")
	trainCmd.Flags().IntVar(&maxStale, "stale", defaults.MaxStaleGenerations, "Generations without improvement before a round ends")
	trainCmd.Flags().IntVar(&rounds, "rounds", defaults.Rounds, "Refinement rounds")
	trainCmd.Flags().Float64Var(&intervalLow, "low", defaults.Interval.Low, "Initial interval lower bound")
	trainCmd.Flags().Float64Var(&intervalHigh, "high", defaults.Interval.High, "Initial interval upper bound")
	trainCmd.Flags().StringVar(&seeding, "seeding", defaults.Seeding.String(), "Initial population: random, zeros, ones")
	trainCmd.Flags().StringVar(&batchPolicy, "batch-policy", string(defaults.BatchPolicy), "Batch draw: per-evaluation, per-round")
	trainCmd.Flags().IntVar(&batchSize, "batch-size", 32, "Examples per batch (0 = full dataset)")
	trainCmd.Flags().UintVar(&maxGenerations, "max-generations", 1000, "Generation cap per round (genetic engine)")
	trainCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	trainCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every round at info level")
	trainCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadTrainConfig(configPath, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))

	dataset, datasetName, err := loadDataset(rng)
	if err != nil {
		return err
	}
	if standardize {
		dataset.Standardize()
	}

	act, err := nn.ParseActivation(activation)
	if err != nil {
		return err
	}
	shape := append([]int{dataset.Features()}, hidden...)
	shape = append(shape, dataset.Classes)
	net, err := nn.New(shape, act)
	if err != nil {
		return fmt.Errorf("failed to build network: %w", err)
	}

	engines, check, err := newEngineFactory(engineName, seed, maxGenerations)
	if err != nil {
		return err
	}

	optimizer, err := tune.New(cfg, engines, check)
	if err != nil {
		return err
	}

	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	run := store.NewRun(store.RunConfig{
		Dataset:             datasetName,
		Shape:               shape,
		Activation:          string(act),
		Engine:              engineName,
		IntervalLow:         cfg.Interval.Low,
		IntervalHigh:        cfg.Interval.High,
		Partitions:          cfg.Partitions,
		PopulationSize:      cfg.PopulationSize,
		MaxStaleGenerations: cfg.MaxStaleGenerations,
		Rounds:              cfg.Rounds,
		BatchSize:           batchSize,
		BatchPolicy:         string(cfg.BatchPolicy),
		Seed:                seed,
	})
	if err := runStore.SaveRun(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	trace, err := store.NewTraceWriter(runStore.BaseDir(), run.ID, false)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}

	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = progressbar.NewOptions(cfg.Rounds,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("refining"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
		)
	}
	optimizer.OnRound = func(s tune.RoundSummary) error {
		if bar != nil {
			bar.Add(1)
		}
		return trace.Write(store.TraceEntry{
			Round:       s.Round,
			Fitness:     s.Fitness,
			BestFitness: s.BestFitness,
			MeanWidth:   s.MeanWidth,
			Duration:    s.Duration,
			Timestamp:   time.Now(),
		})
	}

	slog.Info("Starting training",
		"run_id", run.ID,
		"dataset", datasetName,
		"examples", dataset.Len(),
		"shape", shape,
		"parameters", net.Layout().Size(),
		"engine", engineName,
	)

	start := time.Now()
	result, err := optimizer.Tune(net, dataset.Sampler(batchSize, rng), cfg.Rounds, verbose)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err := finishTrace(runStore, run, trace, err); err != nil {
		return err
	}

	all := dataset.All()
	loss, err := net.Loss(all.Examples, all.Labels)
	if err != nil {
		return fmt.Errorf("failed to evaluate loss: %w", err)
	}
	accuracy, err := net.Score(all.Examples, all.Labels)
	if err != nil {
		return fmt.Errorf("failed to evaluate accuracy: %w", err)
	}

	run.Complete(result.Best.Fitness, result.Best.Round, len(result.Rounds), accuracy)
	if err := runStore.SaveRun(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	slog.Info("Training complete",
		"run_id", run.ID,
		"elapsed", time.Since(start),
		"best_fitness", result.Best.Fitness,
		"best_round", result.Best.Round,
		"loss", loss,
		"accuracy", accuracy,
	)

	fmt.Printf("Run %s: loss %.4f, accuracy %.2f%% (best fitness %.4f in round %d)\n",
		run.ID, loss, accuracy*100, result.Best.Fitness, result.Best.Round)
	return nil
}

// finishTrace closes the run's trace and, when tuning or the final trace flush
// failed, records the run as failed and returns the error to report.
func finishTrace(runStore store.Store, run *store.Run, trace *store.TraceWriter, tuneErr error) error {
	traceErr := trace.Close()

	var err error
	switch {
	case tuneErr != nil:
		if traceErr != nil {
			slog.Error("Failed to close trace", "run_id", run.ID, "error", traceErr)
		}
		err = fmt.Errorf("training failed: %w", tuneErr)
	case traceErr != nil:
		err = fmt.Errorf("failed to write trace: %w", traceErr)
	default:
		return nil
	}

	run.Fail(err)
	if saveErr := runStore.SaveRun(run); saveErr != nil {
		slog.Error("Failed to record failed run", "run_id", run.ID, "error", saveErr)
	}
	return err
}

// loadTrainConfig starts from the defaults, applies the TOML file at path if
// any, then every flag for which changed reports true.
func loadTrainConfig(path string, changed func(name string) bool) (tune.Config, error) {
	cfg := tune.DefaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return tune.Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			slog.Warn("Ignoring unknown config keys", "path", path, "keys", fmt.Sprint(undecoded))
		}
	}

	if changed("partitions") {
		cfg.Partitions = partitions
	}
	if changed("pop") {
		cfg.PopulationSize = population
	}
	if changed("stale") {
		cfg.MaxStaleGenerations = maxStale
	}
	if changed("rounds") {
		cfg.Rounds = rounds
	}
	if changed("low") || changed("high") {
		low, high := cfg.Interval.Low, cfg.Interval.High
		if changed("low") {
			low = intervalLow
		}
		if changed("high") {
			high = intervalHigh
		}
		cfg.Interval = interval.Interval{Low: low, High: high}
	}
	if changed("batch-policy") || cfg.BatchPolicy == "" {
		p, err := data.ParseBatchPolicy(batchPolicy)
		if err != nil {
			return tune.Config{}, err
		}
		cfg.BatchPolicy = p
	}

	s, err := search.ParseSeeding(seeding)
	if err != nil {
		return tune.Config{}, err
	}
	cfg.Seeding = s

	return cfg, nil
}

func loadDataset(rng *rand.Rand) (*data.Dataset, string, error) {
	if dataPath == "" {
		ds, err := data.Blobs(blobsN, 2, blobsClasses, blobsSpread, rng)
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate blobs: %w", err)
		}
		return ds, "blobs", nil
	}

	ds, err := data.LoadCSV(dataPath, labelColumn, csvHeader)
	if err != nil {
		return nil, "", err
	}
	return ds, dataPath, nil
}

// newEngineFactory returns the named engine factory together with the check
// of which population sizes and seedings it can run.
func newEngineFactory(name string, seed int64, maxGenerations uint) (search.Factory, search.Checker, error) {
	switch name {
	case "genetic":
		cfg := search.DefaultGeneticConfig()
		cfg.Seed = seed
		cfg.MaxGenerations = maxGenerations
		return search.NewGenetic(cfg), cfg.CheckPopulation, nil
	case "mayfly":
		cfg := search.MayflyConfig{Seed: seed}
		return search.NewMayfly(cfg), cfg.CheckPopulation, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine: %s (want genetic or mayfly)", name)
	}
}
