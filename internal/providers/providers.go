// Package providers builds the configured cost sources.
package providers

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/lvonguyen/finops-pipeline/internal/aggregator"
	"github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/providers/aws"
	"github.com/lvonguyen/finops-pipeline/internal/providers/azure"
	"github.com/lvonguyen/finops-pipeline/internal/providers/gcp"
	"github.com/lvonguyen/finops-pipeline/internal/providers/simulated"
)

// ErrDisabled is the init error of a provider turned off in configuration
var ErrDisabled = errors.New("provider disabled")

// Sources returns one source per known cloud, in merge order: AWS, Azure,
// GCP. A disabled or unbuildable provider keeps its slot with a nil
// extractor. When the simulated source is enabled it fills the slot of its
// cloud if that slot has no real extractor, otherwise it is appended.
// The returned func releases client resources.
func Sources(ctx context.Context, cfg config.ProvidersConfig, logger *zap.Logger) ([]aggregator.Source, func()) {
	var closers []func() error

	sources := []aggregator.Source{
		build(logger, aws.Cloud, cfg.AWS.Enabled, func() (aggregator.Extractor, error) {
			return aws.New(ctx, cfg.AWS)
		}),
		build(logger, azure.Cloud, cfg.Azure.Enabled, func() (aggregator.Extractor, error) {
			return azure.New(cfg.Azure)
		}),
		build(logger, gcp.Cloud, cfg.GCP.Enabled, func() (aggregator.Extractor, error) {
			e, err := gcp.New(ctx, cfg.GCP)
			if err != nil {
				return nil, err
			}
			closers = append(closers, e.Close)
			return e, nil
		}),
	}

	if cfg.Simulated.Enabled {
		sim := simulated.New(cfg.Simulated.Seed)
		placed := false
		for i := range sources {
			if strings.EqualFold(sources[i].Cloud, cfg.Simulated.Cloud) && sources[i].Extractor == nil {
				sources[i].Extractor = sim
				sources[i].InitErr = nil
				placed = true
				break
			}
		}
		if !placed {
			sources = append(sources, aggregator.Source{Cloud: cfg.Simulated.Cloud, Extractor: sim})
		}
		logger.Info("simulated cost source enabled",
			zap.String("cloud", cfg.Simulated.Cloud),
			zap.Int64("seed", cfg.Simulated.Seed))
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("failed to close provider client", zap.Error(err))
			}
		}
	}
	return sources, cleanup
}

func build(logger *zap.Logger, cloud string, enabled bool, newFn func() (aggregator.Extractor, error)) aggregator.Source {
	if !enabled {
		return aggregator.Source{Cloud: cloud, InitErr: ErrDisabled}
	}

	e, err := newFn()
	if err != nil {
		logger.Warn("provider not configured", zap.String("cloud", cloud), zap.Error(err))
		return aggregator.Source{Cloud: cloud, InitErr: err}
	}
	return aggregator.Source{Cloud: cloud, Extractor: e}
}
