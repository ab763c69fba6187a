package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/ceap-risk/internal/pipeline"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/storage"
)

// Snapshot is the output of one completed scoring run.
type Snapshot struct {
	RunID       string
	CompletedAt time.Time
	Bundle      *report.Bundle
}

// Results holds the latest completed run served by the API.
type Results struct {
	mu     sync.RWMutex
	latest *Snapshot
	now    func() time.Time
}

// NewResults creates an empty Results.
func NewResults() *Results {
	return &Results{now: func() time.Time { return time.Now().UTC() }}
}

// Publish replaces the served run.
func (r *Results) Publish(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = s
}

// PublishState publishes the outputs of a finished pipeline run.
func (r *Results) PublishState(state *pipeline.PipelineState) {
	r.Publish(&Snapshot{
		RunID:       state.RunID,
		CompletedAt: r.now(),
		Bundle:      state.Bundle(),
	})
}

// Latest returns the served run, or nil before the first one completes.
func (r *Results) Latest() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// LoadSnapshot reads the documents of a previous run from base, a local
// output directory or a gs:// prefix. deputies.json is required;
// aggregations and manifest are read when present.
func LoadSnapshot(ctx context.Context, store storage.Service, base string) (*Snapshot, error) {
	b := &report.Bundle{}

	obj, err := store.Open(ctx, locate(base, report.FileDeputies))
	if err != nil {
		return nil, fmt.Errorf("LoadSnapshot: %w", err)
	}
	b.Deputies, err = report.ReadProfiles(obj)
	obj.Close()
	if err != nil {
		return nil, fmt.Errorf("LoadSnapshot: %w", err)
	}
	snap := &Snapshot{CompletedAt: obj.Updated, Bundle: b}

	if obj, err := store.Open(ctx, locate(base, report.FileAggregations)); err == nil {
		b.Aggregations, err = report.ReadAggregations(obj)
		obj.Close()
		if err != nil {
			return nil, fmt.Errorf("LoadSnapshot: %w", err)
		}
	} else if !storage.IsNotExist(err) {
		return nil, fmt.Errorf("LoadSnapshot: %w", err)
	}

	if obj, err := store.Open(ctx, locate(base, report.FileManifest)); err == nil {
		b.Manifest, err = report.ReadManifest(obj)
		obj.Close()
		if err != nil {
			return nil, fmt.Errorf("LoadSnapshot: %w", err)
		}
		snap.RunID = b.Manifest.RunID
	} else if !storage.IsNotExist(err) {
		return nil, fmt.Errorf("LoadSnapshot: %w", err)
	}

	return snap, nil
}

func locate(base, name string) string {
	if storage.IsGCSURI(base) {
		return strings.TrimSuffix(base, "/") + "/" + name
	}
	return filepath.Join(base, name)
}
