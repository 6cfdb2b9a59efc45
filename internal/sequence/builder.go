// Package sequence builds the ordered list of trials for one session:
// shuffled objects for normal trials, catch trials at collision-free random
// positions, and sampled stimulus angles for every normal trial.
package sequence

import (
	"log/slog"
	"slices"

	"github.com/nvandessel/triad-choice/internal/logging"
	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/sampling"
)

// Sequence is an ordered list of trials. Trial indices are 1-based.
type Sequence []models.TrialSpec

// At returns the trial with the given 1-based index.
func (s Sequence) At(index int) (models.TrialSpec, bool) {
	if index < 1 || index > len(s) {
		return models.TrialSpec{}, false
	}
	return s[index-1], true
}

// Builder generates sequences. All randomness comes from the sampler's Source.
type Builder struct {
	cfg       Config
	sampler   *sampling.Sampler
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewBuilder validates cfg and returns a builder drawing from src.
func NewBuilder(cfg Config, src sampling.Source) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{
		cfg:     cfg,
		sampler: sampling.NewSampler(cfg.Sampling, src),
	}, nil
}

// SetLogger sets the structured logger and decision logger for the builder
// and its sampler.
func (b *Builder) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	b.logger = logger
	b.decisions = decisions
	b.sampler.SetLogger(logger, decisions)
}

// Config returns the validated configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Sampler exposes the angle sampler.
func (b *Builder) Sampler() *sampling.Sampler {
	return b.sampler
}

// BuildObjectOrder returns a uniform random permutation of 1..n (Fisher-Yates).
func (b *Builder) BuildObjectOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i + 1
	}
	for i := n - 1; i > 0; i-- {
		j := b.sampler.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// drawsPerCatch bounds the rejection draws per catch position.
const drawsPerCatch = 64

// ChooseCatchPositions draws k distinct positions in [1, total] by rejection
// and returns them sorted ascending. k is capped at total. If the draws run
// out, the remaining positions are the lowest unused ones.
func (b *Builder) ChooseCatchPositions(k, total int) []int {
	k = min(k, total)
	chosen := make(map[int]struct{}, k)
	positions := make([]int, 0, k)
	for draws := 0; len(positions) < k && draws < k*drawsPerCatch; draws++ {
		pos := b.sampler.IntN(total) + 1
		if _, dup := chosen[pos]; dup {
			continue
		}
		chosen[pos] = struct{}{}
		positions = append(positions, pos)
	}

	if missing := k - len(positions); missing > 0 {
		if b.logger != nil {
			b.logger.Warn("catch position draws exhausted, filling lowest free slots", "missing", missing, "total", total)
		}
		for pos := 1; len(positions) < k; pos++ {
			if _, used := chosen[pos]; used {
				continue
			}
			chosen[pos] = struct{}{}
			positions = append(positions, pos)
		}
	}

	slices.Sort(positions)
	return positions
}

// Build generates a full sequence of cfg.TotalTrials trials.
func (b *Builder) Build() Sequence {
	cfg := b.cfg

	order := b.BuildObjectOrder(cfg.ObjectCount)
	catchPositions := b.ChooseCatchPositions(len(cfg.CatchTrials), cfg.TotalTrials)
	if b.decisions != nil {
		b.decisions.Log(map[string]any{
			"event":           "sequence_planned",
			"total_trials":    cfg.TotalTrials,
			"catch_positions": catchPositions,
		})
	}

	isCatch := make(map[int]bool, len(catchPositions))
	for _, pos := range catchPositions {
		isCatch[pos] = true
	}

	seq := make(Sequence, 0, cfg.TotalTrials)
	nextCatch, nextObject := 0, 0
	for pos := 1; pos <= cfg.TotalTrials; pos++ {
		if isCatch[pos] {
			ct := cfg.CatchTrials[nextCatch]
			nextCatch++
			seq = append(seq, models.TrialSpec{
				TrialIndex:    pos,
				ObjectID:      ct.ObjectID,
				RefAngle:      ct.RefAngle,
				NearAngle:     ct.NearAngle,
				FarAngle:      ct.FarAngle,
				IsCatch:       true,
				CorrectOption: ct.CorrectOption,
			})
			continue
		}

		if nextObject == len(order) {
			order = b.BuildObjectOrder(cfg.ObjectCount)
			nextObject = 0
			if b.logger != nil {
				b.logger.Debug("object order exhausted, reshuffled", "position", pos, "objects", cfg.ObjectCount)
			}
		}
		objectID := order[nextObject]
		nextObject++

		ref := b.sampler.SampleUniformAngle()
		nf := b.sampler.SampleNearFar(ref)
		seq = append(seq, models.TrialSpec{
			TrialIndex: pos,
			ObjectID:   objectID,
			RefAngle:   ref,
			NearAngle:  nf.Near,
			FarAngle:   nf.Far,
		})
	}

	if b.logger != nil {
		b.logger.Debug("sequence built", "trials", len(seq), "catch_trials", len(catchPositions))
	}
	return seq
}
