package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ranklab/internal/domain"
	"ranklab/internal/engine"
)

// Generator produces evaluation reports by running every engine operation
// against one window.
type Generator struct {
	engine         *engine.Engine
	dimensions     []domain.Dimension
	opportunityDim domain.Dimension
	now            func() time.Time // Injectable clock for deterministic output
	newRunID       func() string
}

// NewGenerator creates a new report generator covering every dimension, with
// the opportunity model keyed by surface.
func NewGenerator(eng *engine.Engine) *Generator {
	return &Generator{
		engine:         eng,
		dimensions:     domain.Dimensions(),
		opportunityDim: domain.DimensionSurface,
		now:            func() time.Time { return time.Now().UTC() },
		newRunID:       uuid.NewString,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRunID sets a custom run id source for deterministic output.
func (g *Generator) WithRunID(newRunID func() string) *Generator {
	g.newRunID = newRunID
	return g
}

// WithDimensions restricts the breakdown sections to the given dimensions.
func (g *Generator) WithDimensions(dims ...domain.Dimension) *Generator {
	g.dimensions = dims
	return g
}

// WithOpportunityDimension keys the opportunity section by another dimension.
func (g *Generator) WithOpportunityDimension(d domain.Dimension) *Generator {
	g.opportunityDim = d
	return g
}

// Generate runs a complete evaluation for one query.
func (g *Generator) Generate(ctx context.Context, q engine.Query) (*Report, error) {
	snapshot, err := g.engine.Snapshot(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	breakdowns := make([]domain.DimensionBreakdown, 0, len(g.dimensions))
	for _, d := range g.dimensions {
		b, err := g.engine.Breakdown(ctx, q, d, 0)
		if err != nil {
			return nil, fmt.Errorf("breakdown %s: %w", d, err)
		}
		breakdowns = append(breakdowns, *b)
	}

	opportunity, err := g.engine.Opportunity(ctx, q, g.opportunityDim, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("opportunity %s: %w", g.opportunityDim, err)
	}

	trends, err := g.engine.Trends(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}

	return &Report{
		RunID:       g.newRunID(),
		GeneratedAt: g.now(),
		DaysBack:    snapshot.DaysBack,
		Surface:     snapshot.Surface,
		Country:     snapshot.Country,
		K:           snapshot.K,
		Mode:        snapshot.Mode,
		Snapshot:    snapshot.Metrics,
		Quality:     snapshot.Quality,
		Breakdowns:  breakdowns,
		Opportunity: opportunity,
		Trends:      trends,
	}, nil
}
