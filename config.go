package lemonrest

import (
	"time"

	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// InMemory as a path opens a collection that is never written to disk.
const InMemory = ":memory:"

const defaultCacheShards = 16
const maxDefaultCacheBytes uint64 = 64 << 20
const fallbackCacheBytes uint64 = 16 << 20

type ReloadStrategy string
type IDStrategy string

const (
	// ReloadAlways re-reads storage at the start of every transaction.
	ReloadAlways ReloadStrategy = "always"
	// ReloadOnOpen reads storage once; memory is authoritative afterwards.
	ReloadOnOpen ReloadStrategy = "open"
)

const (
	// IDSequence assigns the current max id + 1.
	IDSequence IDStrategy = "sequence"
	// IDTimestamp assigns unix milliseconds, bumped past the max id on collision.
	IDTimestamp IDStrategy = "timestamp"
)

type Config struct {
	ReloadStrategy ReloadStrategy
	IDStrategy     IDStrategy
	Indent         bool
	SyncWrites     bool
	TruncateOnOpen bool
	// CacheMaxBytes bounds the encoded record cache used with ReloadOnOpen.
	// Zero picks a size from total system memory.
	CacheMaxBytes uint64
	CacheShards   int
	Logger        *zap.Logger
	Observer      Observer
	Clock         func() time.Time
}

func (cfg *Config) applyDefaults() error {
	switch cfg.ReloadStrategy {
	case "":
		cfg.ReloadStrategy = ReloadAlways
	case ReloadAlways, ReloadOnOpen:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown reload strategy %q", cfg.ReloadStrategy)
	}

	switch cfg.IDStrategy {
	case "":
		cfg.IDStrategy = IDSequence
	case IDSequence, IDTimestamp:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown id strategy %q", cfg.IDStrategy)
	}

	if cfg.CacheShards <= 0 {
		cfg.CacheShards = defaultCacheShards
	}

	if cfg.CacheMaxBytes == 0 {
		cfg.CacheMaxBytes = defaultCacheBytes()
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return nil
}

func defaultCacheBytes() uint64 {
	total := memory.TotalMemory()
	if total == 0 {
		return fallbackCacheBytes
	}

	size := total / 64
	if size > maxDefaultCacheBytes {
		size = maxDefaultCacheBytes
	}

	return size
}

func resolveConfig(cfgs []*Config) (*Config, error) {
	cfg := &Config{}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cp := *cfgs[0]
		cfg = &cp
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}
