package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/agnos-rpc/restful-probe/internal/config"
	"github.com/agnos-rpc/restful-probe/internal/domain"
	"github.com/agnos-rpc/restful-probe/internal/logger"
	"github.com/agnos-rpc/restful-probe/internal/probe"
	"github.com/agnos-rpc/restful-probe/internal/storage"
	"github.com/agnos-rpc/restful-probe/pkg/httpclient"
	"github.com/agnos-rpc/restful-probe/pkg/publishers"
	"github.com/agnos-rpc/restful-probe/pkg/targets"
)

// Options carries per-invocation settings that do not live in Config.
type Options struct {
	Params   map[string]any
	Selector string
	// HTTPClient replaces the resty client built from Config.
	HTTPClient httpclient.Client
}

// Prober represents the client runtime. It resolves the target, sends the
// call, prints the body and hands the outcome to history and sinks.
type Prober struct {
	cfg      *config.Config
	target   domain.Target
	client   *probe.Client
	fanout   *publishers.Fanout
	store    storage.Store
	interval time.Duration
	selector string
	log      logger.Logger
}

// NewProber builds a prober runtime from config.
func NewProber(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*Prober, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	targetReg, err := targets.LoadRegistry(cfg.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("load targets registry: %w", err)
	}
	target, err := targetReg.Resolve(cfg.Target, targets.Overrides{
		Host:     cfg.GatewayHost,
		Port:     cfg.GatewayPort,
		Function: cfg.Function,
		Format:   cfg.Format,
		Params:   opts.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve target: %w", err)
	}
	log.DebugObj("target resolved", "target", map[string]any{
		"id":  target.ID,
		"url": target.URL(),
	})

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.NewRestyClient(cfg.RequestTimeout)
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		EntryTTL:        cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.DebugObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"entry_ttl_seconds":        int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Prober{
		cfg:      cfg,
		target:   target,
		client:   probe.NewClient(httpClient),
		fanout:   fanout,
		store:    store,
		interval: cfg.WatchInterval,
		selector: strings.TrimSpace(opts.Selector),
		log:      log,
	}, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Target returns the resolved call target.
func (p *Prober) Target() domain.Target {
	return p.target.Clone()
}

// Run performs the call and writes the outcome to out. With a watch interval
// it keeps calling until ctx is cancelled; only the first call's failure is
// returned.
func (p *Prober) Run(ctx context.Context, out io.Writer) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("prober is not initialized")
	}
	defer p.Close()

	if err := p.runOnce(ctx, out); err != nil {
		return err
	}
	if p.interval <= 0 {
		return nil
	}

	p.log.InfoObj("watch loop starting", "prober_state", map[string]any{
		"target_id":        p.target.ID,
		"publishers_count": p.fanout.Size(),
		"watch_interval":   p.interval.String(),
	})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.InfoObj("watch loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := p.runOnce(ctx, out); err != nil {
				p.log.ErrorObj("scheduled probe failed", "error", err)
			}
		}
	}
}

// runOnce performs a single call. Nothing is written to out unless the call
// and any selector extraction succeed; an extraction failure is recorded as
// a failed result.
func (p *Prober) runOnce(ctx context.Context, out io.Writer) error {
	res, body, err := p.client.Call(ctx, p.target)

	var matches []string
	if err == nil && p.selector != "" {
		matches, err = probe.Extract(body, p.selector)
		if err != nil {
			err = fmt.Errorf("extract %q: %w", p.selector, err)
			res.Error = err.Error()
		}
	}

	p.record(res)
	p.publish(ctx, res)
	if err != nil {
		return err
	}

	if p.selector == "" {
		_, err := fmt.Fprintln(out, string(body))
		return err
	}
	for _, m := range matches {
		if _, err := fmt.Fprintln(out, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prober) record(res domain.ProbeResult) {
	if p.store == nil {
		return
	}
	if err := p.store.Record(res); err != nil {
		p.log.WarnObj("probe history write failed", "error", err)
	}
}

func (p *Prober) publish(ctx context.Context, res domain.ProbeResult) {
	if p.fanout.Size() == 0 {
		return
	}
	n, err := p.fanout.Publish(ctx, publishers.NewEvent(p.cfg.AppName, res))
	if err != nil {
		p.log.WarnObj("probe result publish failed", "publish_result", map[string]any{
			"delivered": n,
			"error":     err.Error(),
		})
	}
}

// Close releases the history store and sink connections.
func (p *Prober) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.log.ErrorObj("storage close failed", "error", err)
			errs = append(errs, err)
		}
		p.store = nil
	}
	if p.fanout != nil {
		if err := p.fanout.Close(); err != nil {
			errs = append(errs, err)
		}
		p.fanout = publishers.NewFanout(nil)
	}
	return errors.Join(errs...)
}

// History lists the newest recorded probe results.
func History(cfg *config.Config, limit int) ([]domain.ProbeResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if !strings.EqualFold(strings.TrimSpace(cfg.StorageType), "bbolt") {
		return nil, fmt.Errorf("history requires storage_type=bbolt (got %q)", cfg.StorageType)
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		EntryTTL:        cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()
	return store.Recent(limit)
}
