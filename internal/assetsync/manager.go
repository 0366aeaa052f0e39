package assetsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"canister-assets/internal/assetconfig"
	"canister-assets/internal/assetstate"
	"canister-assets/pkg/canisterclient"
)

// Options configures one synchronization run.
type Options struct {
	SourceDir      string
	ClearObsolete  bool
	MaxConcurrency int
}

// Manager drives source traversal, chunk upload, diffing, and commit
// against a single canister client, mirroring the start/stop-loop shape
// used elsewhere in this codebase for long-running coordinators.
type Manager struct {
	client canisterclient.Client
	log    *logrus.Entry

	mu     sync.Mutex
	active bool
	quit   chan struct{}
}

// NewManager wires a sync manager around client. log may be nil, in which
// case a standard logger is used.
func NewManager(client canisterclient.Client, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{client: client, log: log, quit: make(chan struct{})}
}

// Result summarizes one completed synchronization run.
type Result struct {
	Operations []assetstate.Operation
	BatchID    uint64
}

// SyncOnce performs a single synchronization round: load the config tree,
// discover local sources, build each project asset (uploading chunks as
// needed), diff against the canister's current inventory, and commit the
// resulting operation list as one batch.
func (m *Manager) SyncOnce(ctx context.Context, opts Options) (*Result, error) {
	tree, err := assetconfig.Load(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("load config tree: %w", err)
	}

	sources, err := DiscoverSources(opts.SourceDir, tree)
	if err != nil {
		return nil, fmt.Errorf("discover sources: %w", err)
	}
	m.log.Debugf("discovered %d source files under %s", len(sources), opts.SourceDir)

	canisterAssets, err := m.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list canister assets: %w", err)
	}
	canisterByKey := make(map[string]assetstate.AssetDetails, len(canisterAssets))
	canisterProps := make(map[string]assetstate.AssetProperties, len(canisterAssets))
	for _, a := range canisterAssets {
		canisterByKey[a.Key] = a
		props, err := m.client.GetAssetProperties(ctx, a.Key)
		if err != nil {
			return nil, fmt.Errorf("get properties for %s: %w", a.Key, err)
		}
		canisterProps[a.Key] = props
	}

	batchID, err := m.client.CreateBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	project := make(map[string]*ProjectAsset, len(sources))
	for _, src := range sources {
		pa, err := BuildProjectAsset(ctx, m.client, batchID, opts.MaxConcurrency, tree, src, canisterByKey)
		if err != nil {
			return nil, fmt.Errorf("build project asset %s: %w", src.Key, err)
		}
		project[src.Key] = pa
	}

	if unused := tree.UnusedRules(); len(unused) > 0 {
		for _, rule := range unused {
			m.log.Warnf("unused config rule: %s", rule)
		}
	}

	ops := Plan(project, canisterByKey, canisterProps, opts.ClearObsolete)
	if len(ops) == 0 {
		m.log.Info("sync: no changes, nothing to commit")
		return &Result{BatchID: batchID}, nil
	}

	if err := m.client.CommitBatch(ctx, batchID, ops); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	m.log.Infof("sync: committed %d operation(s)", len(ops))

	return &Result{Operations: ops, BatchID: batchID}, nil
}

// Start launches a background loop that re-runs SyncOnce whenever trigger
// fires, until the context is cancelled or Stop is called. trigger is
// typically fed by a filesystem watcher; the manager itself has no
// opinion about what causes a re-sync.
func (m *Manager) Start(ctx context.Context, opts Options, trigger <-chan struct{}) {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.quit = make(chan struct{})
	quit := m.quit
	m.mu.Unlock()

	go func() {
		for {
			if _, err := m.SyncOnce(ctx, opts); err != nil {
				m.log.Warnf("sync error: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case <-trigger:
				continue
			}
		}
	}()
}

// Stop ends a running watch loop started by Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	close(m.quit)
	m.active = false
}
