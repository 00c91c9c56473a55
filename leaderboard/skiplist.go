package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
	"time"

	"gameservices/core"
)

const (
	maxLevel = 24
	pFactor  = 0.25
)

// link points forward on one level; span is the number of rank positions it skips.
type link struct {
	next *node
	span int
}

type node struct {
	e      Entry
	levels []link
}

// SkipList is an indexable skip list ordered by score desc, then earlier date,
// then player id. Rank and page lookups are O(log n) through the spans.
type SkipList struct {
	mu       sync.RWMutex
	head     *node
	level    int
	length   int
	byPlayer map[core.PlayerID]*node
	rng      *rand.Rand
}

func NewSkipList() *SkipList {
	var seed [16]byte
	_, _ = cryptorand.Read(seed[:])
	return &SkipList{
		head:     &node{levels: make([]link, maxLevel)},
		level:    1,
		byPlayer: make(map[core.PlayerID]*node),
		rng:      rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))),
	}
}

func (s *SkipList) randomLevel() int {
	l := 1
	for l < maxLevel && s.rng.Float64() < pFactor {
		l++
	}
	return l
}

// ahead reports whether a ranks before b.
func ahead(a, b Entry) bool {
	switch {
	case a.Score != b.Score:
		return a.Score > b.Score
	case !a.Date.Equal(b.Date):
		return a.Date.Before(b.Date)
	default:
		return a.Player < b.Player
	}
}

// Update inserts player or moves it to the new score.
func (s *SkipList) Update(player core.PlayerID, score int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byPlayer[player]; ok {
		s.unlink(old.e)
	}
	s.byPlayer[player] = s.insert(Entry{Player: player, Score: score, Date: at})
}

func (s *SkipList) insert(e Entry) *node {
	var (
		update [maxLevel]*node
		rank   [maxLevel]int
	)
	x := s.head
	for i := s.level - 1; i >= 0; i-- {
		if i < s.level-1 {
			rank[i] = rank[i+1]
		}
		for x.levels[i].next != nil && ahead(x.levels[i].next.e, e) {
			rank[i] += x.levels[i].span
			x = x.levels[i].next
		}
		update[i] = x
	}

	lvl := s.randomLevel()
	for i := s.level; i < lvl; i++ {
		update[i] = s.head
		s.head.levels[i].span = s.length
	}
	if lvl > s.level {
		s.level = lvl
	}

	n := &node{e: e, levels: make([]link, lvl)}
	for i := 0; i < lvl; i++ {
		prev := &update[i].levels[i]
		n.levels[i].next = prev.next
		prev.next = n
		n.levels[i].span = prev.span - (rank[0] - rank[i])
		prev.span = rank[0] - rank[i] + 1
	}
	for i := lvl; i < s.level; i++ {
		update[i].levels[i].span++
	}
	s.length++
	return n
}

func (s *SkipList) unlink(e Entry) {
	var update [maxLevel]*node
	x := s.head
	for i := s.level - 1; i >= 0; i-- {
		for x.levels[i].next != nil && ahead(x.levels[i].next.e, e) {
			x = x.levels[i].next
		}
		update[i] = x
	}
	target := x.levels[0].next
	if target == nil || target.e.Player != e.Player {
		return
	}
	for i := 0; i < s.level; i++ {
		prev := &update[i].levels[i]
		if prev.next == target {
			prev.span += target.levels[i].span - 1
			prev.next = target.levels[i].next
		} else {
			prev.span--
		}
	}
	for s.level > 1 && s.head.levels[s.level-1].next == nil {
		s.level--
	}
	s.length--
	delete(s.byPlayer, e.Player)
}

// at returns the node holding the 1-based rank.
func (s *SkipList) at(rank int) *node {
	if rank < 1 || rank > s.length {
		return nil
	}
	traversed := 0
	x := s.head
	for i := s.level - 1; i >= 0; i-- {
		for x.levels[i].next != nil && traversed+x.levels[i].span <= rank {
			traversed += x.levels[i].span
			x = x.levels[i].next
		}
		if traversed == rank {
			return x
		}
	}
	return nil
}

func (s *SkipList) Remove(player core.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byPlayer[player]; ok {
		s.unlink(n.e)
	}
}

func (s *SkipList) TopN(n int) []Entry {
	return s.Range(1, n)
}

// Range returns up to n entries starting at the 1-based rank start.
func (s *SkipList) Range(start, n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	x := s.at(start)
	if x == nil {
		return nil
	}
	out := make([]Entry, 0, min(n, s.length-start+1))
	for ; x != nil && len(out) < n; x = x.levels[0].next {
		out = append(out, x.e)
	}
	return out
}

// Rank returns the 1-based position of player.
func (s *SkipList) Rank(player core.PlayerID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target, ok := s.byPlayer[player]
	if !ok {
		return 0, false
	}
	rank := 0
	x := s.head
	for i := s.level - 1; i >= 0; i-- {
		for x.levels[i].next != nil && !ahead(target.e, x.levels[i].next.e) {
			rank += x.levels[i].span
			x = x.levels[i].next
		}
		if x == target {
			return rank, true
		}
	}
	return 0, false
}

func (s *SkipList) Get(player core.PlayerID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byPlayer[player]; ok {
		return n.e, true
	}
	return Entry{}, false
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

var _ Board = (*SkipList)(nil)
