package identifier

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskq/internal/metrics"
)

// Generator returns identifiers from the remote issuer and falls back to the
// local generator when the remote call fails.
type Generator struct {
	remote  Issuer
	local   *LocalGenerator
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewGenerator composes the two strategies. remote may be nil, in which case
// every identifier is generated locally.
func NewGenerator(remote Issuer, local *LocalGenerator, logger *slog.Logger, m *metrics.Metrics) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if local == nil {
		local = NewLocalGenerator(nil)
	}
	return &Generator{
		remote:  remote,
		local:   local,
		logger:  logger.With("component", "identifier_generator"),
		metrics: m,
	}
}

// NewID returns a single identifier.
func (g *Generator) NewID(ctx context.Context) (ID, error) {
	ids, err := g.NewIDs(ctx, 1)
	if err != nil {
		return ID{}, err
	}
	return ids[0], nil
}

// NewIDs returns exactly count identifiers. Remote failures are not
// surfaced; an error is returned only for an invalid count or when local
// generation itself fails.
func (g *Generator) NewIDs(ctx context.Context, count int) ([]ID, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}

	ids := make([]ID, 0, count)

	if g.remote != nil {
		values, err := g.remote.Issue(ctx, count)
		if err != nil {
			g.logger.WarnContext(ctx, "identifier service unavailable, generating identifiers locally",
				"error", err,
				"count", count)
		}
		for _, v := range values {
			ids = append(ids, ID{Value: v, Source: SourceRemoteIssued})
			g.metrics.IdentifierGenerated(string(SourceRemoteIssued))
		}
		if err == nil && len(ids) < count {
			g.logger.WarnContext(ctx, "identifier service returned fewer ids than requested",
				"requested", count,
				"returned", len(ids))
		}
	}

	for len(ids) < count {
		v, err := g.local.Generate()
		if err != nil {
			return nil, err
		}
		ids = append(ids, ID{Value: v, Source: SourceLocallyGenerated})
		g.metrics.IdentifierGenerated(string(SourceLocallyGenerated))
	}

	return ids, nil
}
