package sampler

import (
	"math/rand"
	"time"

	"github.com/example/phonobot/pkg/models"
)

// Sampler deals candidate items without replacement. Items already marked
// in the exhaustion mask are skipped until the pool runs dry, at which
// point the mask resets and dealing starts over. The randomness source is
// injectable so tests can pin the order.
type Sampler struct {
	rnd *rand.Rand
}

// New creates a sampler seeded from the current time
func New() *Sampler {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource creates a sampler with a caller-supplied source
func NewWithSource(src rand.Source) *Sampler {
	return &Sampler{rnd: rand.New(src)}
}

// Draw selects count distinct items from pool, honoring mask, and returns
// the selection together with the updated mask.
//
// If enough unserved items remain they are drawn from directly. Otherwise
// every remaining unserved item is taken, the mask resets, and the
// shortfall is drawn from the full pool minus the items already taken in
// this call, so a single draw never repeats an item. If the whole pool is
// smaller than count, the whole pool is returned.
func (s *Sampler) Draw(pool []models.CandidateItem, mask Bitmask, count int) ([]models.CandidateItem, Bitmask) {
	if len(pool) == 0 || count <= 0 {
		return nil, mask
	}

	// Degenerate case: the request covers the pool. Serve everything and
	// rebuild the mask from the selection, ignoring the incoming mask: the
	// draw exhausts every item regardless of which were served before, so
	// the result matches taking the stragglers and resetting.
	if count >= len(pool) {
		selected := make([]models.CandidateItem, len(pool))
		copy(selected, pool)
		s.shuffle(selected)
		updated := Bitmask(0)
		for _, item := range selected {
			updated = updated.Set(item.Position)
		}
		return selected, updated
	}

	var available []models.CandidateItem
	for _, item := range pool {
		if !mask.IsSet(item.Position) {
			available = append(available, item)
		}
	}

	if len(available) >= count {
		s.shuffle(available)
		selected := available[:count]
		for _, item := range selected {
			mask = mask.Set(item.Position)
		}
		return selected, mask
	}

	// Exhausted: take the stragglers, reset, and top up from the full
	// pool minus what this draw already holds.
	selected := make([]models.CandidateItem, 0, count)
	taken := make(map[int]bool, count)
	for _, item := range available {
		selected = append(selected, item)
		taken[item.Position] = true
	}

	var rest []models.CandidateItem
	for _, item := range pool {
		if !taken[item.Position] {
			rest = append(rest, item)
		}
	}
	s.shuffle(rest)
	selected = append(selected, rest[:count-len(available)]...)

	updated := Bitmask(0)
	for _, item := range selected {
		updated = updated.Set(item.Position)
	}
	return selected, updated
}

func (s *Sampler) shuffle(items []models.CandidateItem) {
	s.rnd.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
