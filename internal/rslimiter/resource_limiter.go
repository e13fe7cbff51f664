// Package rslimiter samples process and system resources and refuses new
// headless renders while usage is above the configured thresholds.
package rslimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
)

// ResourceLimiter admits or refuses render work based on the latest usage sample.
type ResourceLimiter struct {
	config    config.ResourceLimiterConfig
	logger    zerolog.Logger
	sample    func() ResourceUsage
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	last      ResourceUsage
	sampled   bool
}

// NewResourceLimiter creates a limiter. Zero-valued thresholds get defaults.
func NewResourceLimiter(cfg config.ResourceLimiterConfig, logger zerolog.Logger) *ResourceLimiter {
	defaults := config.NewDefaultResourceLimiterConfig()
	if cfg.CheckIntervalSecs <= 0 {
		cfg.CheckIntervalSecs = defaults.CheckIntervalSecs
	}
	if cfg.MaxGoroutines <= 0 {
		cfg.MaxGoroutines = defaults.MaxGoroutines
	}
	if cfg.SystemMemThreshold <= 0 {
		cfg.SystemMemThreshold = defaults.SystemMemThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ResourceLimiter{
		config: cfg,
		logger: logger.With().Str("component", "ResourceLimiter").Logger(),
		sample: GetResourceUsage,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins periodic sampling. It is a no-op when the limiter is disabled.
func (rl *ResourceLimiter) Start() {
	if !rl.config.Enabled {
		return
	}
	rl.mu.Lock()
	if rl.isRunning {
		rl.mu.Unlock()
		return
	}
	rl.isRunning = true
	rl.mu.Unlock()

	rl.refresh()
	rl.wg.Add(1)
	go rl.monitorResources()

	rl.logger.Info().
		Int("max_goroutines", rl.config.MaxGoroutines).
		Float64("system_mem_threshold", rl.config.SystemMemThreshold).
		Int("check_interval_secs", rl.config.CheckIntervalSecs).
		Msg("Resource limiter started")
}

// Stop ends sampling.
func (rl *ResourceLimiter) Stop() {
	rl.mu.Lock()
	if !rl.isRunning {
		rl.mu.Unlock()
		return
	}
	rl.isRunning = false
	rl.mu.Unlock()

	rl.cancel()
	rl.wg.Wait()
	rl.logger.Info().Msg("Resource limiter stopped")
}

// Admit reports whether a new render may start. A refusal unwraps to
// errorwrapper.ErrRenderBackendUnavailable. A nil or disabled limiter admits everything.
func (rl *ResourceLimiter) Admit() error {
	if rl == nil || !rl.config.Enabled {
		return nil
	}

	rl.mu.RLock()
	usage, sampled := rl.last, rl.sampled
	rl.mu.RUnlock()
	if !sampled {
		usage = rl.refresh()
	}

	if reason := rl.exceeded(usage); reason != "" {
		rl.logger.Warn().
			Str("reason", reason).
			Int("goroutines", usage.Goroutines).
			Float64("system_mem_percent", usage.SystemMemUsedPercent).
			Msg("Refusing render, resource limits exceeded")
		return errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, reason)
	}
	return nil
}

// Ready is Admit for readiness probes.
func (rl *ResourceLimiter) Ready() error {
	return rl.Admit()
}

// Usage returns the latest sample.
func (rl *ResourceLimiter) Usage() ResourceUsage {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.last
}

func (rl *ResourceLimiter) exceeded(usage ResourceUsage) string {
	if usage.Goroutines > rl.config.MaxGoroutines {
		return fmt.Sprintf("goroutine limit exceeded: current %d > limit %d", usage.Goroutines, rl.config.MaxGoroutines)
	}
	if usage.SystemMemUsedPercent/100.0 > rl.config.SystemMemThreshold {
		return fmt.Sprintf("system memory threshold exceeded: %.1f%% > %.1f%%", usage.SystemMemUsedPercent, rl.config.SystemMemThreshold*100)
	}
	return ""
}

func (rl *ResourceLimiter) refresh() ResourceUsage {
	usage := rl.sample()
	rl.mu.Lock()
	rl.last = usage
	rl.sampled = true
	rl.mu.Unlock()
	return usage
}

func (rl *ResourceLimiter) monitorResources() {
	defer rl.wg.Done()

	ticker := time.NewTicker(time.Duration(rl.config.CheckIntervalSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rl.ctx.Done():
			return
		case <-ticker.C:
			usage := rl.refresh()
			rl.logger.Debug().
				Int64("alloc_mb", usage.AllocMB).
				Int("goroutines", usage.Goroutines).
				Float64("system_mem_percent", usage.SystemMemUsedPercent).
				Float64("cpu_percent", usage.CPUUsagePercent).
				Msg("Current resource usage")
		}
	}
}
