// Package inventory groups the registries of one audit and drives their
// population.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/warden/internal/audit"
	"github.com/yairfalse/warden/internal/discovery"
	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

// Inventory holds one registry per resource kind.
type Inventory struct {
	SecurityGroups *registry.Registry[*resource.SecurityGroup]
	Queues         *registry.Registry[*resource.Queue]
	Keys           *registry.Registry[*resource.Key]
	DBInstances    *registry.Registry[*resource.DBInstance]
	Tables         *registry.Registry[*resource.Table]
}

// New creates empty registries covering the audited regions.
func New(actx *audit.Context) *Inventory {
	regions := actx.Regions()
	return &Inventory{
		SecurityGroups: registry.New[*resource.SecurityGroup](resource.KindSecurityGroup, regions),
		Queues:         registry.New[*resource.Queue](resource.KindQueue, regions),
		Keys:           registry.New[*resource.Key](resource.KindKey, regions),
		DBInstances:    registry.New[*resource.DBInstance](resource.KindDBInstance, regions),
		Tables:         registry.New[*resource.Table](resource.KindTable, regions),
	}
}

// Collections returns every registry in discovery order.
func (inv *Inventory) Collections() []registry.Collection {
	return []registry.Collection{inv.SecurityGroups, inv.Queues, inv.Keys, inv.DBInstances, inv.Tables}
}

// Collection returns the registry for kind.
func (inv *Inventory) Collection(kind resource.Kind) (registry.Collection, error) {
	for _, c := range inv.Collections() {
		if c.Kind() == kind {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}

// Resources returns the resources of kind, nil for an unknown kind.
func (inv *Inventory) Resources(kind resource.Kind) []resource.Resource {
	c, err := inv.Collection(kind)
	if err != nil {
		return nil
	}
	return c.Resources()
}

// Seal marks every registry complete.
func (inv *Inventory) Seal() {
	for _, c := range inv.Collections() {
		c.Seal()
	}
}

// Sealed reports whether every registry is sealed.
func (inv *Inventory) Sealed() bool {
	for _, c := range inv.Collections() {
		if !c.Sealed() {
			return false
		}
	}
	return true
}

// Discover runs every service in turn. Kinds absent from kinds are skipped;
// an empty set discovers all. The returned reports cover every pass.
func (inv *Inventory) Discover(ctx context.Context, d *discovery.Discoverer, kinds []resource.Kind) []fanout.Report {
	want := make(map[resource.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	enabled := func(k resource.Kind) bool { return len(want) == 0 || want[k] }

	steps := []struct {
		kind resource.Kind
		run  func(context.Context) []fanout.Report
	}{
		{resource.KindSecurityGroup, func(ctx context.Context) []fanout.Report { return d.SecurityGroups(ctx, inv.SecurityGroups) }},
		{resource.KindQueue, func(ctx context.Context) []fanout.Report { return d.Queues(ctx, inv.Queues) }},
		{resource.KindKey, func(ctx context.Context) []fanout.Report { return d.Keys(ctx, inv.Keys) }},
		{resource.KindDBInstance, func(ctx context.Context) []fanout.Report { return d.DBInstances(ctx, inv.DBInstances) }},
		{resource.KindTable, func(ctx context.Context) []fanout.Report { return d.Tables(ctx, inv.Tables) }},
	}

	var reports []fanout.Report
	for _, step := range steps {
		if !enabled(step.kind) {
			continue
		}
		start := time.Now()
		rs := step.run(ctx)
		reports = append(reports, rs...)

		c, _ := inv.Collection(step.kind)
		log.Info().
			Str("kind", string(step.kind)).
			Int("count", c.Len()).
			Dur("duration", time.Since(start)).
			Msg("discovery complete")
	}
	return reports
}
