package search

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/MaxHalford/eaopt"
	"golang.org/x/time/rate"
)

// GeneticConfig configures the eaopt-backed genetic engine.
type GeneticConfig struct {
	// MaxGenerations caps a single Evolve call regardless of progress.
	MaxGenerations uint
	// Tournament is the number of contestants per tournament selection.
	Tournament uint
	// MutRate and CrossRate are the per-offspring probabilities of mutation and crossover.
	MutRate   float64
	CrossRate float64
	// FlipRate is the per-bit flip probability of a mutation. Zero means 1/length.
	FlipRate float64
	// Seed initializes the engine RNG; engines from the same factory get derived seeds.
	Seed int64
}

// DefaultGeneticConfig mirrors eaopt's default generational model.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		MaxGenerations: 1000,
		Tournament:     3,
		MutRate:        0.5,
		CrossRate:      0.7,
		Seed:           time.Now().UnixNano(),
	}
}

// CheckPopulation rejects populations too small for tournament selection:
// eaopt needs more individuals than contestants.
func (cfg GeneticConfig) CheckPopulation(size int, seeding Seeding) error {
	if size <= int(cfg.Tournament) {
		return fmt.Errorf("genetic engine needs more than %d individuals for tournament selection, got %d", cfg.Tournament, size)
	}
	return nil
}

// NewGenetic returns a factory of genetic engines sharing one seed sequence.
func NewGenetic(cfg GeneticConfig) Factory {
	seeds := rand.New(rand.NewSource(cfg.Seed))
	return func(fitness Fitness) (Engine, error) {
		if fitness == nil {
			return nil, fmt.Errorf("fitness cannot be nil")
		}
		return &Genetic{
			cfg:     cfg,
			fitness: fitness,
			rng:     rand.New(rand.NewSource(seeds.Int63())),
		}, nil
	}
}

// Genetic evolves bit strings with eaopt's generational model: tournament
// selection, uniform crossover and bit-flip mutation.
//
// Fitness evaluations run sequentially.
type Genetic struct {
	cfg     GeneticConfig
	fitness Fitness
	rng     *rand.Rand

	size    int
	length  int
	seeding Seeding
	ready   bool

	fitErr      error
	evaluations int
	generations uint
	best        Individual
	bestFitness float64
	evolved     bool
}

// ConstructPopulation records the population shape; individuals are drawn when Evolve starts.
func (g *Genetic) ConstructPopulation(size, length int, seeding Seeding) error {
	if err := validatePopulation(size, length); err != nil {
		return err
	}
	if err := g.cfg.CheckPopulation(size, seeding); err != nil {
		return err
	}
	g.size = size
	g.length = length
	g.seeding = seeding
	g.ready = true
	g.evolved = false
	return nil
}

// Evolve runs eaopt until maxStaleGenerations pass without strict improvement
// of the hall of fame, or MaxGenerations is reached.
func (g *Genetic) Evolve(maxStaleGenerations int) error {
	if !g.ready {
		return ErrNoPopulation
	}
	if maxStaleGenerations <= 0 {
		return fmt.Errorf("max stale generations must be positive, got %d", maxStaleGenerations)
	}

	conf := eaopt.NewDefaultGAConfig()
	conf.NPops = 1
	conf.PopSize = uint(g.size)
	conf.NGenerations = g.cfg.MaxGenerations
	conf.HofSize = 1
	conf.Model = eaopt.ModGenerational{
		Selector:  eaopt.SelTournament{NContestants: g.cfg.Tournament},
		MutRate:   g.cfg.MutRate,
		CrossRate: g.cfg.CrossRate,
	}
	conf.ParallelEval = false
	conf.RNG = g.rng

	tracker := NewStaleTracker(maxStaleGenerations)
	conf.EarlyStop = func(ga *eaopt.GA) bool {
		return g.fitErr != nil || tracker.Update(ga.HallOfFame[0].Fitness)
	}

	progress := rate.Sometimes{Interval: time.Second}
	conf.Callback = func(ga *eaopt.GA) {
		progress.Do(func() {
			slog.Debug("Genetic search progress",
				"generation", ga.Generations,
				"best_fitness", ga.HallOfFame[0].Fitness,
				"evaluations", g.evaluations,
			)
		})
	}

	ga, err := conf.NewGA()
	if err != nil {
		return fmt.Errorf("invalid genetic configuration: %w", err)
	}

	g.fitErr = nil
	g.evaluations = 0
	err = ga.Minimize(g.newGenome)
	if g.fitErr != nil {
		return g.fitErr
	}
	if err != nil {
		return fmt.Errorf("genetic search failed: %w", err)
	}

	winner, ok := ga.HallOfFame[0].Genome.(*bitGenome)
	if !ok {
		return fmt.Errorf("unexpected genome type %T", ga.HallOfFame[0].Genome)
	}
	g.best = winner.bits.Clone()
	g.bestFitness = ga.HallOfFame[0].Fitness
	g.generations = ga.Generations
	g.evolved = true

	slog.Debug("Genetic search finished",
		"generations", g.generations,
		"evaluations", g.evaluations,
		"best_fitness", g.bestFitness,
	)
	return nil
}

// BestAllTime returns the hall-of-fame individual of the last Evolve call.
func (g *Genetic) BestAllTime() (Individual, float64, error) {
	if !g.evolved {
		return nil, 0, ErrNotEvolved
	}
	return g.best.Clone(), g.bestFitness, nil
}

// Generations returns how many generations the last Evolve call ran.
func (g *Genetic) Generations() uint {
	return g.generations
}

// Evaluations returns how many fitness evaluations the last Evolve call made.
func (g *Genetic) Evaluations() int {
	return g.evaluations
}

func (g *Genetic) newGenome(rng *rand.Rand) eaopt.Genome {
	return &bitGenome{
		bits: g.seeding.New(g.length, rng),
		flip: g.cfg.FlipRate,
		eval: g.evaluate,
	}
}

// evaluate keeps the first fitness error so Evolve can return it as-is.
func (g *Genetic) evaluate(ind Individual) (float64, error) {
	if g.fitErr != nil {
		return math.Inf(1), g.fitErr
	}
	f, err := g.fitness(ind)
	if err != nil {
		g.fitErr = err
		return math.Inf(1), err
	}
	g.evaluations++
	return f, nil
}

// bitGenome adapts an Individual to eaopt.Genome.
type bitGenome struct {
	bits Individual
	flip float64
	eval func(Individual) (float64, error)
}

func (b *bitGenome) Evaluate() (float64, error) {
	return b.eval(b.bits)
}

// Mutate flips each bit with the configured probability, and always at least one.
func (b *bitGenome) Mutate(rng *rand.Rand) {
	if len(b.bits) == 0 {
		return
	}
	p := b.flip
	if p <= 0 {
		p = 1 / float64(len(b.bits))
	}
	flipped := false
	for i := range b.bits {
		if rng.Float64() < p {
			b.bits[i] = !b.bits[i]
			flipped = true
		}
	}
	if !flipped {
		i := rng.Intn(len(b.bits))
		b.bits[i] = !b.bits[i]
	}
}

// Crossover swaps each position with the other parent with probability 1/2.
func (b *bitGenome) Crossover(other eaopt.Genome, rng *rand.Rand) {
	o := other.(*bitGenome)
	for i := range b.bits {
		if rng.Intn(2) == 0 {
			b.bits[i], o.bits[i] = o.bits[i], b.bits[i]
		}
	}
}

func (b *bitGenome) Clone() eaopt.Genome {
	return &bitGenome{bits: b.bits.Clone(), flip: b.flip, eval: b.eval}
}
