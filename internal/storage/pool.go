package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shyim/filestore/internal/archive"
	"github.com/shyim/filestore/internal/config"
	"github.com/shyim/filestore/internal/metrics"
)

// Pool options consumed by the pool manager rather than the driver
const (
	OptionExclude       = "exclude"
	OptionOverwrite     = "overwrite"
	OptionArchiveFormat = "archive-format"
)

// PoolManager manages named storage pools. Every pool is an initialized
// FileSystem registered under <type>/<pool>; lookups always go through the
// registry, so a pool whose key is unregistered can no longer be resolved.
type PoolManager struct {
	keys        map[string]Key
	owned       map[Key]*FileSystem // built here, terminated by Close
	defaultPool string
	registry    *Registry
	mu          sync.RWMutex
}

// NewPoolManager creates, initializes and registers a backend for every
// storage pool configuration. On failure every pool built so far is torn
// down again.
func NewPoolManager(ctx context.Context, pools map[string]*config.StoragePool, defaultPool string, registry *Registry, opts ...Option) (*PoolManager, error) {
	if registry == nil {
		registry = Default()
	}

	pm := &PoolManager{
		keys:        make(map[string]Key),
		owned:       make(map[Key]*FileSystem),
		defaultPool: defaultPool,
		registry:    registry,
	}

	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fs, err := pm.build(ctx, name, pools[name], opts)
		if err != nil {
			_ = pm.Close(ctx)
			return nil, err
		}
		pm.keys[name] = fs.Key()
		pm.owned[fs.Key()] = fs
	}

	metrics.RegisteredBackends.Set(float64(registry.Len()))
	return pm, nil
}

func (pm *PoolManager) build(ctx context.Context, name string, poolCfg *config.StoragePool, opts []Option) (*FileSystem, error) {
	driverType, ok := LookupDriver(poolCfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown storage type %q for pool %q (available: %v)", poolCfg.Type, name, Drivers())
	}

	poolOpts, driverOptions, err := poolOptions(poolCfg.Options)
	if err != nil {
		return nil, fmt.Errorf("invalid options for storage pool %q: %w", name, err)
	}

	driver, err := driverType.Create(name, driverOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage pool %q: %w", name, err)
	}

	key := NewKey(poolCfg.Type, name)
	all := append([]Option{WithLogger(slog.Default().With("pool", name))}, opts...)
	fs := New(key, driver, append(all, poolOpts...)...)

	if err := fs.Initialize(ctx); err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to initialize storage pool %q: %w", name, err)
	}

	if err := pm.registry.Register(key, fs); err != nil {
		_ = fs.Terminate(ctx)
		return nil, fmt.Errorf("failed to register storage pool %q: %w", name, err)
	}

	return fs, nil
}

// poolOptions splits backend options from the options handed to the driver
func poolOptions(options map[string]string) ([]Option, map[string]string, error) {
	var opts []Option
	driverOptions := make(map[string]string, len(options))

	for k, v := range options {
		switch k {
		case OptionExclude:
			var exts []string
			for _, ext := range strings.Split(v, ",") {
				if ext = strings.TrimSpace(ext); ext != "" {
					exts = append(exts, ext)
				}
			}
			policy, err := NewExtensionPolicy(exts...)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, WithPolicy(policy))
		case OptionOverwrite:
			allow, err := strconv.ParseBool(v)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid %s value %q: %w", OptionOverwrite, v, ErrInvalidArgument)
			}
			opts = append(opts, WithOverwrite(allow))
		case OptionArchiveFormat:
			format, err := archive.ParseFormat(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
			}
			opts = append(opts, WithArchiveFormat(format))
		default:
			driverOptions[k] = v
		}
	}

	return opts, driverOptions, nil
}

// Get resolves a storage pool by name through the registry
func (pm *PoolManager) Get(name string) (Backend, error) {
	pm.mu.RLock()
	key, ok := pm.keys[name]
	pm.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage pool %q: %w", name, ErrNotFound)
	}

	backend, err := pm.registry.Resolve(key)
	if errors.Is(err, ErrUnknownRegistration) {
		return nil, fmt.Errorf("storage pool %q (%s) is no longer registered: %w", name, key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return backend, nil
}

// GetDefault returns the default storage pool
func (pm *PoolManager) GetDefault() (Backend, error) {
	if pm.defaultPool == "" {
		return nil, fmt.Errorf("no default storage pool configured: %w", ErrNotFound)
	}

	return pm.Get(pm.defaultPool)
}

// GetOrDefault returns the named pool, or the default one when name is empty
func (pm *PoolManager) GetOrDefault(name string) (Backend, error) {
	if name != "" {
		return pm.Get(name)
	}

	return pm.GetDefault()
}

// List returns all pool names, sorted
func (pm *PoolManager) List() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	names := make([]string, 0, len(pm.keys))
	for name := range pm.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PoolCount returns the number of storage pools
func (pm *PoolManager) PoolCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.keys)
}

// Close terminates and unregisters every pool built by the manager, including
// pools whose key was already unregistered elsewhere
func (pm *PoolManager) Close(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var errs []error
	for key, fs := range pm.owned {
		if err := pm.registry.UnregisterBackend(fs); err != nil && !errors.Is(err, ErrUnknownRegistration) {
			errs = append(errs, fmt.Errorf("pool %q: %w", key, err))
		}
		if err := fs.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pool %q: %w", key, err))
		}
		delete(pm.owned, key)
	}
	clear(pm.keys)

	metrics.RegisteredBackends.Set(float64(pm.registry.Len()))
	return errors.Join(errs...)
}
