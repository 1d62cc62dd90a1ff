// Package cache provides in-memory caching of retrieval results so that
// repeated questions with the same retrieval options skip the embed+search
// round trip.
package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// QueryCache caches retrieval results by (question, retrieval options).
// Thread-safe via sync.RWMutex. Entries auto-expire after TTL.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	stopCh  chan struct{}
}

type cacheEntry struct {
	results   []model.RetrievalResult
	createdAt time.Time
	expiresAt time.Time
}

// New creates a QueryCache with the given TTL and starts background cleanup.
func New(ttl time.Duration) *QueryCache {
	c := &QueryCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns cached retrieval results if present and not expired.
func (c *QueryCache) Get(question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, bool) {
	key := cacheKey(question, topK, useEnhancer, useReranking)
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	slog.Info("[CACHE] hit",
		"query_hash", key[strings.LastIndex(key, ":")+1:],
		"age_ms", time.Since(entry.createdAt).Milliseconds(),
	)
	return entry.results, true
}

// Set stores retrieval results in the cache.
func (c *QueryCache) Set(question string, topK int, useEnhancer, useReranking bool, results []model.RetrievalResult) {
	key := cacheKey(question, topK, useEnhancer, useReranking)
	now := time.Now()
	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		results:   results,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()

	slog.Info("[CACHE] set",
		"query_hash", key[strings.LastIndex(key, ":")+1:],
		"ttl_s", int(c.ttl.Seconds()),
		"total_entries", c.Len(),
	)
}

// Clear empties the cache. Call this after an ingestion job completes,
// since newly indexed nodes can change the answer to a previously cached
// question.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	count := len(c.entries)
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	if count > 0 {
		slog.Info("[CACHE] cleared", "entries_removed", count)
	}
}

// Len returns the number of entries in the cache.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop halts the background cleanup goroutine.
func (c *QueryCache) Stop() {
	close(c.stopCh)
}

// cleanup removes expired entries every 5 minutes.
func (c *QueryCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			before := len(c.entries)
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			after := len(c.entries)
			c.mu.Unlock()
			if before != after {
				slog.Info("[CACHE] cleanup", "removed", before-after, "remaining", after)
			}
		case <-c.stopCh:
			return
		}
	}
}

// cacheKey builds a deterministic key:
// "qc:{topK}:{useEnhancer}:{useReranking}:{hex of the first 8 bytes of sha256(question)}"
func cacheKey(question string, topK int, useEnhancer, useReranking bool) string {
	h := sha256.Sum256([]byte(question))
	return fmt.Sprintf("qc:%d:%v:%v:%x", topK, useEnhancer, useReranking, h[:8])
}
