package crawler

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/amosWeiskopf/levelcrawl/internal/config"
)

// State holds the dedup sets, depth counters and limits of one crawl.
//
// The two URL sets are safe for concurrent use by workers. currentDepth and
// linksFound are written only by the Crawler at the level barrier, before the
// next level's jobs are handed to the pool, so workers observe them through
// the pool channel's happens-before edge.
type State struct {
	visitedCrossLevel sync.Map
	crossLevelCount   atomic.Int64
	visitedThisLevel  sync.Map

	maxURLsPerLevel int
	maxDepth        int
	uniqueness      bool

	currentDepth int
	linksFound   int
}

// NewState creates the state for a crawl bounded by maxURLsPerLevel accepted
// links per page and maxDepth levels below the seed.
func NewState(maxURLsPerLevel, maxDepth int, uniqueness bool) (*State, error) {
	if maxURLsPerLevel < 1 {
		return nil, &config.ConfigurationError{Msg: "maxUrlsPerLevel must be a positive integer"}
	}
	if maxDepth < 0 {
		return nil, &config.ConfigurationError{Msg: "maxDepth must be a non-negative integer"}
	}
	return &State{
		maxURLsPerLevel: maxURLsPerLevel,
		maxDepth:        maxDepth,
		uniqueness:      uniqueness,
		linksFound:      1,
	}, nil
}

// TestAndMarkThisLevel marks u as taken in the current level. It returns
// false when another worker already took it.
func (s *State) TestAndMarkThisLevel(u string) bool {
	_, loaded := s.visitedThisLevel.LoadOrStore(u, struct{}{})
	return !loaded
}

// IsVisitedCrossLevel reports whether u was submitted for fetching in any level.
func (s *State) IsVisitedCrossLevel(u string) bool {
	_, ok := s.visitedCrossLevel.Load(u)
	return ok
}

// MarkVisitedCrossLevel records u as fetched.
func (s *State) MarkVisitedCrossLevel(u string) {
	if _, loaded := s.visitedCrossLevel.LoadOrStore(u, struct{}{}); !loaded {
		s.crossLevelCount.Add(1)
	}
}

// ReachedMaxDepth reports the hard stop: no level may start past maxDepth.
func (s *State) ReachedMaxDepth() bool {
	return s.currentDepth > s.maxDepth
}

// ReachedLastDepth reports that the level in flight is the last one fetched,
// so its pages are not mined for links.
func (s *State) ReachedLastDepth() bool {
	return s.currentDepth == s.maxDepth
}

// EndLevel closes the current level. Only the Crawler calls it, after every
// job of the level has reported.
func (s *State) EndLevel(found int) {
	s.visitedThisLevel.Clear()
	s.currentDepth++
	s.linksFound += found
}

func (s *State) CurrentDepth() int { return s.currentDepth }
func (s *State) LinksFound() int { return s.linksFound }
func (s *State) MaxURLsPerLevel() int { return s.maxURLsPerLevel }
func (s *State) MaxDepth() int { return s.maxDepth }
func (s *State) UniquenessEnabled() bool { return s.uniqueness }

// VisitedCount is the number of distinct URLs fetched across all levels.
func (s *State) VisitedCount() int {
	return int(s.crossLevelCount.Load())
}

// MaxReachableLinks is the size of a full m-ary tree of depth d:
// (m^(d+1) - 1) / (m - 1), or d + 1 when m is 1. It saturates at math.MaxInt.
func (s *State) MaxReachableLinks() int {
	return maxReachableLinks(s.maxURLsPerLevel, s.maxDepth)
}

func maxReachableLinks(m, d int) int {
	if m == 1 {
		return d + 1
	}
	total, level := 1, 1
	for i := 0; i < d; i++ {
		if level > (math.MaxInt-total)/m {
			return math.MaxInt
		}
		level *= m
		total += level
	}
	return total
}
