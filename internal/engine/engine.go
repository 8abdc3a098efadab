// Package engine assembles the scoped discovery core for an embedding
// application: it applies the engine config to the feature packages, owns the
// live spatio-temporal index, and exposes the discovery and visibility
// operations collaborators call.
package engine

import (
	"context"

	"github.com/PlaceBound/PB-Backend/internal/config"
	"github.com/PlaceBound/PB-Backend/internal/core"
	"github.com/PlaceBound/PB-Backend/internal/geo"
	"github.com/PlaceBound/PB-Backend/internal/messaging"
)

type Engine struct {
	index *core.SpatioTemporalIndex
}

// New applies cfg and returns an engine with an empty index. Call Reload (or
// Index().Insert) to populate it.
func New(cfg config.Config) *Engine {
	core.Configure(cfg.MinYear, cfg.MaxYear)
	messaging.SetReactionKinds(cfg.ReactionKinds)
	return &Engine{index: core.NewSpatioTemporalIndex()}
}

// Index exposes the live index for direct inserts and removals.
func (e *Engine) Index() *core.SpatioTemporalIndex {
	return e.index
}

// Reload swaps in a fresh index generation from the persistence collaborator.
func (e *Engine) Reload(ctx context.Context) error {
	return core.RebuildIndex(ctx, e.index)
}

func (e *Engine) FindAreasByPoint(x, y float64, tr *core.TimeRange) []core.AreaMatch {
	return e.index.FindByPoint(x, y, tr)
}

func (e *Engine) FindAreasByRadius(x, y, radius float64, tr *core.TimeRange) ([]core.AreaMatch, error) {
	return e.index.FindByRadius(x, y, radius, tr)
}

func (e *Engine) FindAreasByIntersection(pts []geo.Point, tr *core.TimeRange) ([]core.AreaMatch, error) {
	return e.index.FindByIntersection(pts, tr)
}

func (e *Engine) ListVisibleMessages(ctx context.Context, requesterID, channelID string) ([]messaging.VisibleMessage, error) {
	return messaging.ListVisible(ctx, requesterID, channelID)
}

func (e *Engine) ResolveReactionTally(ctx context.Context, messageID string) (map[string]int, error) {
	return messaging.ResolveReactionTally(ctx, messageID)
}
