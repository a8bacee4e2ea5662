package marketdata

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/models"
)

// Chain tries sources in order and returns the first snapshot. It only
// fails when every source does.
type Chain struct {
	sources []Source
	logger  *logrus.Logger
}

func NewChain(logger *logrus.Logger, sources ...Source) *Chain {
	return &Chain{sources: sources, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Snapshot(ctx context.Context, pair models.PairConfig) (models.MarketSnapshot, error) {
	for _, src := range c.sources {
		snap, err := src.Snapshot(ctx, pair)
		if err == nil {
			return snap, nil
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"source": src.Name(),
			"pair":   pair.ID,
		}).Debug("Source unavailable, trying next")

		if ctx.Err() != nil {
			return models.MarketSnapshot{}, ctx.Err()
		}
	}
	return models.MarketSnapshot{}, ErrUnavailable
}
