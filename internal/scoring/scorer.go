// Package scoring wraps the external generative model that grades ad
// creatives. The model is consumed as an opaque scoring function behind the
// Scorer interface; prompt templating and model choice live on the other
// side of it.
package scoring

import (
	"context"

	"github.com/admetrica/creativescope/internal/models"
)

// Request carries one creative to score.
type Request struct {
	// ImageContent is a base64 data URI ("data:image/...") or an http(s) URL.
	ImageContent string
	Targeting    string
	Objective    models.Objective
}

// Result is the scorer's verdict.
type Result struct {
	Scores          models.ScoreSet
	Recommendations []string
}

// Scorer grades one creative against its targeting and objective.
type Scorer interface {
	Score(ctx context.Context, req *Request) (*Result, error)
}
