// Package bpred provides the fetch-stage branch predictor: a bimodal table
// of 2-bit saturating counters plus a direct-mapped branch target buffer.
package bpred

import "fmt"

// Config holds configuration for the branch predictor.
type Config struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32 `json:"bht_size"`
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 256.
	BTBSize uint32 `json:"btb_size"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BHTSize: 1024,
		BTBSize: 256,
	}
}

// Validate checks that both tables are non-empty powers of two.
func (c Config) Validate() error {
	if c.BHTSize == 0 || c.BHTSize&(c.BHTSize-1) != 0 {
		return fmt.Errorf("bht_size must be a power of two, got %d", c.BHTSize)
	}
	if c.BTBSize == 0 || c.BTBSize&(c.BTBSize-1) != 0 {
		return fmt.Errorf("btb_size must be a power of two, got %d", c.BTBSize)
	}
	return nil
}

// Stats holds statistics for the branch predictor.
type Stats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of resolved branches whose direction matched
	// the counter.
	Correct uint64
	// Mispredictions is the number of resolved branches whose direction
	// did not match the counter.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s Stats) Accuracy() float64 {
	total := s.Correct + s.Mispredictions
	if total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(total) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s Stats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	// Taken indicates whether the counter predicts taken.
	Taken bool
	// Target is the predicted target address (if known from BTB).
	Target uint32
	// TargetKnown indicates whether the target address is known.
	TargetKnown bool
}

// Redirect reports whether fetch should follow Target. A taken prediction
// without a known target falls through.
func (p Prediction) Redirect() bool {
	return p.Taken && p.TargetKnown
}

// Predictor implements a 2-bit saturating counter (bimodal) predictor with a
// Branch Target Buffer (BTB).
type Predictor struct {
	// Branch History Table (BHT) - 2-bit saturating counters
	// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
	//         2=Weakly Taken, 3=Strongly Taken
	bht []uint8

	btb      []btbEntry
	btbValid []bool

	bhtSize uint32
	btbSize uint32

	stats Stats
}

type btbEntry struct {
	pc     uint32
	target uint32
}

// New creates a new branch predictor. Zero sizes take the defaults.
func New(config Config) *Predictor {
	bhtSize := config.BHTSize
	btbSize := config.BTBSize

	if bhtSize == 0 {
		bhtSize = 1024
	}
	if btbSize == 0 {
		btbSize = 256
	}

	bp := &Predictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
		bhtSize:  bhtSize,
		btbSize:  btbSize,
	}
	bp.resetTables()

	return bp
}

func (bp *Predictor) bhtIndex(pc uint32) uint32 {
	return (pc >> 2) & (bp.bhtSize - 1)
}

func (bp *Predictor) btbIndex(pc uint32) uint32 {
	return (pc >> 2) & (bp.btbSize - 1)
}

// Predict makes a branch prediction for the given PC.
func (bp *Predictor) Predict(pc uint32) Prediction {
	pred := Prediction{Taken: bp.bht[bp.bhtIndex(pc)] >= 2}

	btbIdx := bp.btbIndex(pc)
	if bp.btbValid[btbIdx] && bp.btb[btbIdx].pc == pc {
		pred.Target = bp.btb[btbIdx].target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// Update trains the predictor with the resolved outcome of the branch at pc.
func (bp *Predictor) Update(pc uint32, taken bool, target uint32) {
	bhtIdx := bp.bhtIndex(pc)
	counter := bp.bht[bhtIdx]

	if (counter >= 2) == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	switch {
	case taken && counter < 3:
		bp.bht[bhtIdx] = counter + 1
	case !taken && counter > 0:
		bp.bht[bhtIdx] = counter - 1
	}

	if taken {
		btbIdx := bp.btbIndex(pc)
		bp.btb[btbIdx] = btbEntry{pc: pc, target: target}
		bp.btbValid[btbIdx] = true
	}
}

// Stats returns the branch predictor statistics.
func (bp *Predictor) Stats() Stats {
	return bp.stats
}

// Reset clears all predictor state and statistics.
func (bp *Predictor) Reset() {
	bp.resetTables()
	bp.stats = Stats{}
}

func (bp *Predictor) resetTables() {
	// Weakly taken, biased towards loops
	for i := range bp.bht {
		bp.bht[i] = 2
	}
	for i := range bp.btbValid {
		bp.btbValid[i] = false
	}
}
