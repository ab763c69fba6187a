package pipeline

import (
	"context"

	"github.com/dvloznov/ceap-risk/internal/briefing"
	"github.com/dvloznov/ceap-risk/internal/risk"
)

// Briefer produces narrative summaries for finalized profiles. This interface
// enables running the pipeline without a model.
type Briefer interface {
	Brief(ctx context.Context, profiles []*risk.LegislatorProfile) ([]briefing.Briefing, error)
}
