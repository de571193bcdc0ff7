// Hot-reload transport for the admin update verbs in §6, grounded on
// _examples/beinian555-titan's use of go.etcd.io/etcd/client/v3 to
// coordinate cluster state. NTS itself never depends on etcd being
// reachable — the watcher is an optional add-on an operator wires up so
// that pushing new admission lists/pacing values to one etcd key fans out
// to every NTS server process in a region without restarting any of them.
package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/nodetracker/nts/admission"
	"github.com/nodetracker/nts/dynresource"
	"github.com/nodetracker/nts/pacing"
)

func newListsFromWire(wire admissionListsWire) admission.Lists {
	return admission.NewLists(wire.Include, wire.Exclude)
}

// EtcdWatchConfig controls which keys the watcher follows. DynResourceTable
// is nil-able: the Dynamic Resource Table lives on the Server, not the
// Manager, so the caller passes the Table instance it wants kept in sync
// (§4.6, §12's "ntsd resources update" admin verb).
type EtcdWatchConfig struct {
	Endpoints       []string
	PacingKey       string
	AdmissionKey    string
	MinVersionKey   string
	DynResourceKey  string
	DynResourceTable *dynresource.Table
}

// admissionListsWire is the JSON shape stored at AdmissionKey.
type admissionListsWire struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// EtcdWatcher applies remote key changes to a Manager. It owns its own
// client and goroutine; call Close to release both.
type EtcdWatcher struct {
	logger hclog.Logger
	client *clientv3.Client
	mgr    *Manager
	cancel context.CancelFunc
}

// WatchEtcd connects to etcd and starts following the configured keys,
// applying every change to mgr. Returns once the initial connection is
// established; watching continues in the background until Close is called.
func WatchEtcd(logger hclog.Logger, mgr *Manager, cfg EtcdWatchConfig) (*EtcdWatcher, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cli, err := clientv3.New(clientv3.Config{Endpoints: cfg.Endpoints})
	if err != nil {
		return nil, fmt.Errorf("connect to etcd: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &EtcdWatcher{
		logger: logger.Named("config.etcd"),
		client: cli,
		mgr:    mgr,
		cancel: cancel,
	}

	if cfg.PacingKey != "" {
		go w.watchPacing(ctx, cfg.PacingKey)
	}
	if cfg.AdmissionKey != "" {
		go w.watchAdmission(ctx, cfg.AdmissionKey)
	}
	if cfg.MinVersionKey != "" {
		go w.watchMinVersion(ctx, cfg.MinVersionKey)
	}
	if cfg.DynResourceKey != "" && cfg.DynResourceTable != nil {
		go w.watchDynResource(ctx, cfg.DynResourceKey, cfg.DynResourceTable)
	}
	return w, nil
}

// Close stops watching and releases the etcd client.
func (w *EtcdWatcher) Close() error {
	w.cancel()
	return w.client.Close()
}

func (w *EtcdWatcher) watchPacing(ctx context.Context, key string) {
	for resp := range w.client.Watch(ctx, key) {
		for _, ev := range resp.Events {
			if ev.Kv == nil {
				continue
			}
			var cfg pacing.Config
			if err := json.Unmarshal(ev.Kv.Value, &cfg); err != nil {
				w.logger.Warn("bad pacing config from etcd, ignoring", "error", err)
				continue
			}
			if corrected := w.mgr.UpdatePacing(cfg); corrected {
				w.logger.Warn("pacing config from etcd failed validation, fields reset to defaults")
			}
		}
	}
}

func (w *EtcdWatcher) watchAdmission(ctx context.Context, key string) {
	for resp := range w.client.Watch(ctx, key) {
		for _, ev := range resp.Events {
			if ev.Kv == nil {
				continue
			}
			var wire admissionListsWire
			if err := json.Unmarshal(ev.Kv.Value, &wire); err != nil {
				w.logger.Warn("bad admission lists from etcd, ignoring", "error", err)
				continue
			}
			w.mgr.UpdateAdmissionLists(newListsFromWire(wire))
		}
	}
}

func (w *EtcdWatcher) watchMinVersion(ctx context.Context, key string) {
	for resp := range w.client.Watch(ctx, key) {
		for _, ev := range resp.Events {
			if ev.Kv == nil {
				continue
			}
			w.mgr.UpdateMinVersion(string(ev.Kv.Value))
		}
	}
}

func (w *EtcdWatcher) watchDynResource(ctx context.Context, key string, table *dynresource.Table) {
	for resp := range w.client.Watch(ctx, key) {
		for _, ev := range resp.Events {
			if ev.Kv == nil {
				continue
			}
			var entries map[string]dynresource.Entry
			if err := json.Unmarshal(ev.Kv.Value, &entries); err != nil {
				w.logger.Warn("bad dynamic resource table from etcd, ignoring", "error", err)
				continue
			}
			if err := table.Update(entries); err != nil {
				w.logger.Warn("failed to install dynamic resource table from etcd", "error", err)
			}
		}
	}
}
