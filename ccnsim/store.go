package ccnsim

// store.go is the content store of a caching router: the versions of the single
// named content it holds, how long each stays fresh, and how often consumers
// have excluded each one.

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// content is one version of the named content
type content struct {
	id        int
	bad       bool
	freshness float64 // seconds a cached copy stays usable, 0 for forever
}

// entry is a cached version together with its defense bookkeeping
type entry struct {
	obj      *content
	expires  float64
	excluded int
	seq      int // insertion order, larger is more recent
}

// contentStore holds the versions cached at one router
type contentStore struct {
	cache   *lru.Cache[int, *entry]
	ranking bool
	timeout float64
	nextSeq int
}

// createContentStore is a constructor.  capacity 0 means unbounded.
func createContentStore(capacity int, ranking bool, timeout float64) *contentStore {
	if capacity <= 0 {
		capacity = math.MaxInt32
	}
	cache, err := lru.New[int, *entry](capacity)
	if err != nil {
		panic(err)
	}
	cs := new(contentStore)
	cs.cache = cache
	cs.ranking = ranking
	cs.timeout = timeout
	return cs
}

// insert caches obj at time now, replacing any copy of the same version
func (cs *contentStore) insert(now float64, obj *content) {
	expires := math.Inf(1)
	if obj.freshness > 0 {
		expires = now + obj.freshness
	}
	cs.nextSeq++
	ent := &entry{obj: obj, expires: expires, seq: cs.nextSeq}

	// a re-cached version keeps the exclusions it has accumulated
	if old, present := cs.cache.Peek(obj.id); present {
		ent.excluded = old.excluded
		if old.expires < ent.expires {
			ent.expires = old.expires
		}
	}
	cs.cache.Add(obj.id, ent)
}

// lookup returns the version the store answers an interest with, or nil.
// Versions in excl are never returned, stale versions are dropped.
// With ranking the least excluded version wins, ties going to the most recent;
// without it the most recent version wins.
func (cs *contentStore) lookup(now float64, excl map[int]bool) *content {
	var best *entry
	for _, id := range cs.cache.Keys() {
		ent, present := cs.cache.Peek(id)
		if !present {
			continue
		}
		if ent.expires <= now {
			cs.cache.Remove(id)
			continue
		}
		if excl[id] {
			continue
		}
		if best == nil {
			best = ent
			continue
		}
		if cs.ranking && ent.excluded != best.excluded {
			if ent.excluded < best.excluded {
				best = ent
			}
			continue
		}
		if ent.seq > best.seq {
			best = ent
		}
	}
	if best == nil {
		return nil
	}
	// touch for recency
	cs.cache.Get(best.obj.id)
	return best.obj
}

// exclude records that a consumer rejected version id at time now.  An excluded
// version lives at most another timeout seconds.
func (cs *contentStore) exclude(now float64, id int) {
	ent, present := cs.cache.Peek(id)
	if !present {
		return
	}
	ent.excluded++
	if now+cs.timeout < ent.expires {
		ent.expires = now + cs.timeout
	}
}

// excludedCount is the number of exclusions version id has received, -1 if it is not held
func (cs *contentStore) excludedCount(id int) int {
	ent, present := cs.cache.Peek(id)
	if !present {
		return -1
	}
	return ent.excluded
}

// size is the number of versions held, stale ones included
func (cs *contentStore) size() int {
	return cs.cache.Len()
}
