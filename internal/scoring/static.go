package scoring

import (
	"context"
	"hash/fnv"

	"github.com/admetrica/creativescope/internal/models"
)

// StaticScorer grades creatives deterministically from their content. It
// backs local development and tests where no model gateway is available.
type StaticScorer struct{}

// NewStaticScorer creates a scorer with no external dependencies.
func NewStaticScorer() *StaticScorer {
	return &StaticScorer{}
}

var staticRecommendations = map[models.Objective][]string{
	models.ObjectiveAwareness: {
		"Increase logo prominence for brand recall",
		"Use a single focal point to improve memorability",
	},
	models.ObjectiveConsideration: {
		"Add a concrete product benefit to the headline",
		"Show the product in use rather than in isolation",
	},
	models.ObjectiveConversion: {
		"Make the call to action the most prominent element",
		"Add urgency or a concrete offer near the CTA",
	},
	models.ObjectiveEngagement: {
		"Pose a question in the headline to invite interaction",
		"Use faces looking toward the copy to direct attention",
	},
	models.ObjectiveTraffic: {
		"Tighten the headline to under eight words",
		"Increase contrast between the CTA and the background",
	},
	models.ObjectiveLeads: {
		"State what the user gets in exchange for their details",
		"Reduce perceived form effort in the creative copy",
	},
}

// Score derives stable pseudo-scores from a hash of the inputs.
func (s *StaticScorer) Score(_ context.Context, req *Request) (*Result, error) {
	scores := models.ScoreSet{
		Overall:          staticScore(req.ImageContent, req.Targeting, 0),
		Clarity:          staticScore(req.ImageContent, req.Targeting, 1),
		Design:           staticScore(req.ImageContent, req.Targeting, 2),
		AudienceAffinity: staticScore(req.ImageContent, req.Targeting, 3),
	}

	recs := staticRecommendations[req.Objective]
	if len(recs) == 0 {
		recs = []string{"Simplify the layout and lead with a single message"}
	}

	return &Result{Scores: scores, Recommendations: recs}, nil
}

// staticScore maps the inputs to [40, 99] so results look plausible.
func staticScore(image, targeting string, salt byte) float64 {
	h := fnv.New32a()
	h.Write([]byte(image))
	h.Write([]byte{0, salt})
	h.Write([]byte(targeting))
	return float64(40 + h.Sum32()%60)
}
