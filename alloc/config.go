package alloc

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/joshuapare/smallobj/internal/buf"
	"github.com/joshuapare/smallobj/internal/logger"
	"github.com/joshuapare/smallobj/internal/rawmem"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvPageBytes     = "SMALLOBJ_PAGE_BYTES"
	EnvMaxObjectSize = "SMALLOBJ_MAX_OBJECT_SIZE"
	EnvAlignment     = "SMALLOBJ_ALIGNMENT"
	EnvSource        = "SMALLOBJ_SOURCE"
	EnvLogAlloc      = "SMALLOBJ_LOG_ALLOC"
)

// Config defines the size-class layout and collaborators of a SmallObjAllocator.
type Config struct {
	// Name for this configuration (for benchmarking and reports)
	Name string

	PageBytes     int // Target chunk size; blocks per chunk = PageBytes/blockSize, clamped to [8, 255]
	MaxObjectSize int // Largest request served from chunks; larger ones go to Fallback
	Alignment     int // Size-class granularity; class i holds blocks of (i+1)*Alignment bytes

	Source   rawmem.Source    // Chunk buffers. nil = rawmem.Heap
	Fallback GeneralAllocator // Requests above MaxObjectSize. nil = a fresh HeapAllocator
	Logger   *slog.Logger     // Chunk lifecycle at Debug level. nil = logger.L
}

// Predefined configurations.
var (
	// DefaultConfig: 4KB pages, objects up to 256 bytes, 4-byte classes (64 classes).
	DefaultConfig = Config{
		Name:          "Default",
		PageBytes:     4096,
		MaxObjectSize: 256,
		Alignment:     4,
	}

	// ConfigCompact: few, coarse classes for tiny node-like objects (8 classes).
	ConfigCompact = Config{
		Name:          "Compact",
		PageBytes:     2048,
		MaxObjectSize: 64,
		Alignment:     8,
	}

	// ConfigWide: larger pages and objects up to 1KB in 16-byte steps (64 classes).
	ConfigWide = Config{
		Name:          "Wide",
		PageBytes:     16384,
		MaxObjectSize: 1024,
		Alignment:     16,
	}
)

// Layout limits enforced by Validate.
const (
	// MaxSizeClasses bounds ceil(MaxObjectSize/Alignment).
	MaxSizeClasses = 4096

	// MaxChunkBytes bounds the buffer of any single chunk.
	MaxChunkBytes = 64 << 20
)

// Validate rejects layouts that cannot build at least one size class, or whose
// class table or chunks would exceed MaxSizeClasses or MaxChunkBytes.
func (c Config) Validate() error {
	switch {
	case c.PageBytes <= 0:
		return fmt.Errorf("%w: page bytes %d", ErrBadConfig, c.PageBytes)
	case c.MaxObjectSize <= 0:
		return fmt.Errorf("%w: max object size %d", ErrBadConfig, c.MaxObjectSize)
	case c.Alignment <= 0:
		return fmt.Errorf("%w: alignment %d", ErrBadConfig, c.Alignment)
	case c.MaxObjectSize > math.MaxInt-c.Alignment:
		return fmt.Errorf("%w: max object size %d too large", ErrBadConfig, c.MaxObjectSize)
	}

	n := classCount(c.MaxObjectSize, c.Alignment)
	if n > MaxSizeClasses {
		return fmt.Errorf("%w: %d size classes (max %d)", ErrBadConfig, n, MaxSizeClasses)
	}
	for i := range n {
		bs := (i + 1) * c.Alignment
		chunkBytes, ok := buf.MulOverflowSafe(bs, blockCountFor(bs, c.PageBytes))
		if !ok || chunkBytes > MaxChunkBytes {
			return fmt.Errorf("%w: %d-byte class needs chunks above %d bytes", ErrBadConfig, bs, MaxChunkBytes)
		}
	}
	return nil
}

// resolveConfig copies cfg (DefaultConfig when nil) and fills nil collaborators.
func resolveConfig(cfg *Config) Config {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c := *cfg
	if c.Source == nil {
		c.Source = rawmem.Heap{}
	}
	if c.Fallback == nil {
		c.Fallback = &HeapAllocator{}
	}
	if c.Logger == nil {
		c.Logger = logger.L
	}
	return c
}

// ConfigFromEnv overlays SMALLOBJ_* environment variables on base.
// SMALLOBJ_LOG_ALLOC, when non-empty, routes chunk lifecycle logging to stderr.
func ConfigFromEnv(base Config) (Config, error) {
	c := base
	ints := []struct {
		name string
		dst  *int
	}{
		{EnvPageBytes, &c.PageBytes},
		{EnvMaxObjectSize, &c.MaxObjectSize},
		{EnvAlignment, &c.Alignment},
	}
	for _, v := range ints {
		raw, ok := os.LookupEnv(v.name)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return base, fmt.Errorf("%w: %s=%q: %w", ErrBadConfig, v.name, raw, err)
		}
		*v.dst = n
	}

	if raw := os.Getenv(EnvSource); raw != "" {
		src, err := rawmem.ByName(raw)
		if err != nil {
			return base, fmt.Errorf("%w: %s: %w", ErrBadConfig, EnvSource, err)
		}
		c.Source = src
	}

	if os.Getenv(EnvLogAlloc) != "" {
		c.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if err := c.Validate(); err != nil {
		return base, err
	}
	return c, nil
}
