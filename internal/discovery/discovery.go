// Package discovery populates resource registries from AWS.
//
// Each service runs a list pass followed by zero or more enrichment passes.
// Every pass is a full region fan-out and completes before the next starts.
// Region failures are captured in the pass report, per-resource enrichment
// failures are logged and leave the resource at its defaults.
package discovery

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/warden/internal/audit"
	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

// Discoverer runs discovery passes for one audit.
type Discoverer struct {
	actx    *audit.Context
	runner  *fanout.Runner
	clients Clients
}

// New creates a Discoverer.
func New(actx *audit.Context, runner *fanout.Runner, clients Clients) *Discoverer {
	return &Discoverer{actx: actx, runner: runner, clients: clients}
}

// list runs a list pass over every audited region.
func (d *Discoverer) list(ctx context.Context, operation string, op fanout.Op) fanout.Report {
	return d.runner.Run(ctx, operation, d.actx.Regions(), op)
}

// commit appends the items of one completed list op, keeping those the
// filter accepts. It runs only after every page was read, so a region whose
// listing fails part way leaves nothing behind. Duplicates returned by
// overlapping pages are skipped.
func commit[T resource.Resource](reg *registry.Registry[T], actx *audit.Context, items []T) error {
	for _, item := range items {
		id := item.Identity()
		if !actx.Allows(id.ARN) {
			continue
		}
		err := reg.Append(item)
		if errors.Is(err, registry.ErrDuplicateARN) {
			log.Debug().Str("arn", id.ARN).Msg("duplicate resource skipped")
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// enrich fans out over the populated regions of reg, builds one client per
// region and applies fn to every resource of the region in order.
func enrich[T resource.Resource, C any](
	ctx context.Context,
	d *Discoverer,
	operation string,
	reg *registry.Registry[T],
	newClient func(aws.Config) C,
	fn func(ctx context.Context, client C, item T) error,
) fanout.Report {
	return d.runner.Run(ctx, operation, reg.PopulatedRegions(), func(ctx context.Context, region string) error {
		client := newClient(d.actx.ConfigFor(region))
		for _, item := range reg.ByRegion(region) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, client, item); err != nil {
				log.Warn().
					Err(err).
					Str("operation", operation).
					Str("region", region).
					Str("arn", item.Identity().ARN).
					Msg("enrichment failed")
			}
		}
		return nil
	})
}
