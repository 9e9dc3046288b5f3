package game

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// sessionCache is a bounded list of sessions. A session is evicted only when
// it has no open bets and nobody holds it; otherwise the list grows past capacity.
type sessionCache struct {
	mx       sync.Mutex
	list     []*Session
	capacity int
}

func newSessionCache(capacity int) *sessionCache {
	if capacity < 1 {
		capacity = 1
	}
	return &sessionCache{capacity: capacity}
}

func (c *sessionCache) find(userID string) *Session {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.findLocked(userID)
}

// acquire returns the cached session of the user held against eviction.
func (c *sessionCache) acquire(userID string) *Session {
	c.mx.Lock()
	defer c.mx.Unlock()

	s := c.findLocked(userID)
	if s != nil {
		s.pins++
	}
	return s
}

// hold keeps s cached until the returned func is called.
func (c *sessionCache) hold(s *Session) func() {
	c.mx.Lock()
	s.pins++
	c.mx.Unlock()

	return func() { c.release(s) }
}

func (c *sessionCache) release(s *Session) {
	c.mx.Lock()
	defer c.mx.Unlock()
	s.pins--
}

func (c *sessionCache) findLocked(userID string) *Session {
	var found *Session
	for _, s := range c.list {
		if s.UserID != userID {
			continue
		}
		if found != nil {
			panic(fmt.Sprintf("game: duplicate session for user %q", userID))
		}
		found = s
	}
	return found
}

// add caches s unless a session for the same user got there first.
// It returns the cached session, held like acquire does, and the one
// evicted to make room, if any.
func (c *sessionCache) add(s *Session) (cached, evicted *Session) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if existing := c.findLocked(s.UserID); existing != nil {
		existing.pins++
		return existing, nil
	}
	if len(c.list) >= c.capacity {
		evicted = c.evictLocked()
	}
	s.pins++
	c.list = append(c.list, s)

	return s, evicted
}

func (c *sessionCache) evictLocked() *Session {
	idx := -1
	var oldest time.Time
	for i, s := range c.list {
		if s.pins > 0 || s.OpenBets() > 0 {
			continue
		}
		if lc := s.LastChange(); idx < 0 || lc.Before(oldest) {
			idx, oldest = i, lc
		}
	}
	if idx < 0 {
		return nil
	}

	evicted := c.list[idx]
	c.list = slices.Delete(c.list, idx, idx+1)
	return evicted
}

func (c *sessionCache) len() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return len(c.list)
}

func (c *sessionCache) drain() []*Session {
	c.mx.Lock()
	defer c.mx.Unlock()

	list := c.list
	c.list = nil
	return list
}
