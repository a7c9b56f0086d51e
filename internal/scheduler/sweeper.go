package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/middleware"
	"github.com/falconsupport/api/internal/store"
)

// SweptPrefixes are the blob namespaces written by uploads.
var SweptPrefixes = []string{blob.ImagePrefix, blob.AttachmentPrefix, blob.RequestAttachmentPrefix}

// OrphanSweeper deletes uploaded blobs that no guide or request links to.
// Uploads happen before the record that references them is saved, so blobs
// younger than the grace period are always kept.
type OrphanSweeper struct {
	guides   store.GuideStore
	requests store.RequestStore
	blobs    blob.Store
	interval time.Duration
	grace    time.Duration
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	runs      int
	deleted   int
	lastRun   time.Time
	lastError string
}

type SweeperConfig struct {
	Interval time.Duration
	Grace    time.Duration
}

// Orphan is an unreferenced blob found by a sweep.
type Orphan struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

type SweepResult struct {
	Scanned int      `json:"scanned"`
	Orphans []Orphan `json:"orphans"`
	Deleted int      `json:"deleted"`
}

func NewOrphanSweeper(guides store.GuideStore, requests store.RequestStore, blobs blob.Store, cfg SweeperConfig) *OrphanSweeper {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Grace == 0 {
		cfg.Grace = 24 * time.Hour
	}
	return &OrphanSweeper{
		guides:   guides,
		requests: requests,
		blobs:    blobs,
		interval: cfg.Interval,
		grace:    cfg.Grace,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

func (s *OrphanSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[Sweeper] Starting with interval %v, grace %v", s.interval, s.grace)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Sweeper] Context cancelled, stopping")
			return
		case <-s.stopChan:
			log.Println("[Sweeper] Stop signal received")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *OrphanSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
		log.Println("[Sweeper] Stopped")
	}
}

func (s *OrphanSweeper) runOnce(ctx context.Context) {
	res, err := s.Sweep(ctx, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastRun = s.now()
	if err != nil {
		s.lastError = err.Error()
		log.Printf("[Sweeper] Sweep failed: %v", err)
		return
	}
	s.lastError = ""
	s.deleted += res.Deleted
	if res.Deleted > 0 {
		log.Printf("[Sweeper] Deleted %d orphaned blobs of %d scanned", res.Deleted, res.Scanned)
	}
}

// Sweep finds orphans past the grace period and, when remove is set,
// deletes them. References are collected before listing blobs, so a blob
// uploaded and linked mid-sweep is either too young or already referenced.
func (s *OrphanSweeper) Sweep(ctx context.Context, remove bool) (*SweepResult, error) {
	refs, err := References(ctx, s.guides, s.requests)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.grace)
	res := &SweepResult{Orphans: []Orphan{}}
	for _, prefix := range SweptPrefixes {
		objs, err := s.blobs.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, obj := range objs {
			res.Scanned++
			if refs[obj.Key] || obj.ModTime.After(cutoff) {
				continue
			}
			res.Orphans = append(res.Orphans, Orphan{Key: obj.Key, Size: obj.Size, ModTime: obj.ModTime})
			if !remove {
				continue
			}
			if err := s.blobs.Delete(ctx, obj.Key); err != nil {
				log.Printf("[Sweeper] Error deleting %s: %v", obj.Key, err)
				continue
			}
			res.Deleted++
		}
	}

	middleware.RecordOrphansDeleted(res.Deleted)
	return res, nil
}

// GetStatus returns current sweeper status
func (s *OrphanSweeper) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"enabled":  true,
		"running":  s.running,
		"interval": s.interval.String(),
		"grace":    s.grace.String(),
		"runs":     s.runs,
		"deleted":  s.deleted,
	}
	if !s.lastRun.IsZero() {
		status["lastRun"] = s.lastRun
	}
	if s.lastError != "" {
		status["lastError"] = s.lastError
	}
	return status
}
