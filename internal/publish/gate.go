package publish

import "heartofnews/internal/domain"

const defaultRejectThreshold = 0.75

// Decision is the gate's routing verdict for one article.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// Policy gates processing articles into published or rejected. Evaluate is
// a pure function of the score record and the source reliability prior, so
// the same inputs always route the same way.
type Policy struct {
	RejectThreshold float64
}

// NewPolicy applies the default threshold when the given one is not in (0, 1].
func NewPolicy(threshold float64) Policy {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultRejectThreshold
	}
	return Policy{RejectThreshold: threshold}
}

// Evaluate computes a manipulation-risk composite from the score record,
// discounted by source reliability, and rejects when it exceeds the
// threshold. Bias direction does not matter, only magnitude.
func (p Policy) Evaluate(score domain.ScoreRecord, reliability float64) Decision {
	bias := score.PoliticalBias
	if bias < 0 {
		bias = -bias
	}

	risk := 0.45*score.EmotionalLanguage + 0.3*bias + 0.25*(1-clamp01(score.FactOpinionRatio))
	risk *= 1 - 0.5*clamp01(reliability)

	if risk > p.RejectThreshold {
		return Reject
	}
	return Approve
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
