package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/verityops/verity/internal/evidence"
)

// Export assembles a compliance evidence pack for the owner's corpus and the
// query log within [from, to]. Nil bounds leave that side open.
func (s *Service) Export(ctx context.Context, owner, actor string, from, to *time.Time) (*evidence.Pack, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrEmptyOwner
	}
	if strings.TrimSpace(actor) == "" {
		return nil, ErrEmptyActor
	}

	ctx, span := s.tracer.Start(ctx, "service.Export")
	defer span.End()
	span.SetAttributes(
		attribute.String("export.owner", owner),
		attribute.String("export.actor", actor),
	)

	pack, err := s.exporter.Export(ctx, owner, actor, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("export.documents", len(pack.Documents)),
		attribute.Int("export.queries", len(pack.Queries)),
	)
	return pack, nil
}
