package out

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	positionrpc "geoattend/internal/modules/position/adapter/out/rpc"
	"geoattend/internal/modules/position/domain"
	positionout "geoattend/internal/modules/position/port/out"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const defaultStartTimeout = 3 * time.Second

type PluginConfig struct {
	Binary string
	// Env is appended to the host environment of the plugin process.
	Env          []string
	StartTimeout time.Duration
}

// PluginProvider samples positions from an out-of-process provider. The
// process is started on first use and restarted after it exits.
type PluginProvider struct {
	cfg    PluginConfig
	logger hclog.Logger

	mu     sync.Mutex
	client *plugin.Client
	rpc    positionrpc.PositionProviderClient
}

var _ positionout.Provider = (*PluginProvider)(nil)

func NewPluginProvider(cfg PluginConfig, logger hclog.Logger) *PluginProvider {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	return &PluginProvider{cfg: cfg, logger: logger.Named("position-plugin")}
}

func (p *PluginProvider) Describe(ctx context.Context) (domain.ProviderInfo, error) {
	client, err := p.connect()
	if err != nil {
		return domain.ProviderInfo{}, err
	}
	meta, err := client.GetMetadata(ctx)
	if err != nil {
		p.reset()
		return domain.ProviderInfo{}, fmt.Errorf("get metadata: %w", err)
	}
	return domain.ProviderInfo{Name: meta.Name, Version: meta.Version}, nil
}

func (p *PluginProvider) Read(ctx context.Context) (domain.Reading, error) {
	client, err := p.connect()
	if err != nil {
		return domain.Reading{}, err
	}
	fix, err := client.Current(ctx)
	if err != nil {
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.reset()
		}
		return domain.Reading{}, fmt.Errorf("current position: %w", err)
	}
	reading := domain.Reading{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		AccuracyM: fix.AccuracyM,
		Provider:  "plugin",
	}
	if fix.SampledAtUnixMS > 0 {
		reading.SampledAt = time.UnixMilli(fix.SampledAtUnixMS).UTC()
	}
	return reading, nil
}

// Close stops the plugin process.
func (p *PluginProvider) Close() error {
	p.reset()
	return nil
}

func (p *PluginProvider) connect() (positionrpc.PositionProviderClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && !p.client.Exited() {
		return p.rpc, nil
	}
	if p.client != nil {
		p.logger.Warn("position plugin exited, restarting", "binary", p.cfg.Binary)
		p.client.Kill()
		p.client, p.rpc = nil, nil
	}

	cmd := exec.Command(p.cfg.Binary)
	cmd.Env = append(os.Environ(), p.cfg.Env...)
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  positionrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          positionrpc.PluginMap(nil),
		Cmd:              cmd,
		Managed:          true,
		StartTimeout:     p.cfg.StartTimeout,
		Logger:           p.logger,
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start position plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(positionrpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense position plugin: %w", err)
	}
	typed, ok := raw.(positionrpc.PositionProviderClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("position plugin client type mismatch")
	}
	p.client, p.rpc = client, typed
	return typed, nil
}

func (p *PluginProvider) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Kill()
	}
	p.client, p.rpc = nil, nil
}
