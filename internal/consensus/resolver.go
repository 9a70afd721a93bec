// Package consensus merges the judgments for one candidate into a single
// resolved fact with an explicit confidence and resolution method.
package consensus

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leasedesk/reconcile/internal/model"
)

// TrustProvider supplies historical per-analyzer trust weights for
// tie-breaking. The pattern learner implements it; a nil provider means
// every analyzer weighs 1.0.
type TrustProvider interface {
	Weight(analyzerID string) float64
}

// Resolver computes consensus across judgments.
type Resolver struct {
	// LowConfidenceThreshold flags (never discards) resolved facts whose
	// confidence falls below it.
	LowConfidenceThreshold float64

	// Trust breaks categorical-vote ties after mean confidence.
	Trust TrustProvider
}

// NewResolver creates a Resolver with the given threshold.
func NewResolver(lowConfidenceThreshold float64, trust TrustProvider) *Resolver {
	if lowConfidenceThreshold <= 0 {
		lowConfidenceThreshold = 0.5
	}
	return &Resolver{LowConfidenceThreshold: lowConfidenceThreshold, Trust: trust}
}

// Resolve merges all judgments for one candidate. Categorical fields
// (semantic type, data type) resolve by majority vote with ties broken by
// mean confidence then analyzer trust; free-form fields (canonical name,
// formula) take the single highest-confidence judgment. Every judgment is
// retained in Contributing regardless of outcome.
//
// Resolved confidence = agreement_ratio × mean confidence of the winning
// semantic-type group, where agreement_ratio = |winning group| / |all|.
func (r *Resolver) Resolve(c model.CandidateFact, judgments []model.Judgment) (*model.ResolvedFact, error) {
	if len(judgments) == 0 {
		return nil, eris.New("consensus: no judgments")
	}

	winning := r.voteGroup(judgments, func(j model.Judgment) string { return j.SemanticType })
	dataTypeGroup := r.voteGroup(judgments, func(j model.Judgment) string { return string(j.DataType) })

	agreement := float64(len(winning)) / float64(len(judgments))
	confidence := agreement * meanConfidence(winning)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	best := highestConfidence(judgments)
	bestInGroup := highestConfidence(winning)

	method := model.MethodMajority
	if len(judgments) == 1 {
		method = model.MethodBestConfidence
	}

	resolved := &model.ResolvedFact{
		Candidate:     c,
		SemanticType:  winning[0].SemanticType,
		CanonicalName: best.CanonicalName,
		DataType:      dataTypeGroup[0].DataType,
		Value:         c.RawValue,
		Formula:       bestFormula(judgments),
		Unit:          bestInGroup.Unit,
		Confidence:    confidence,
		LowConfidence: confidence < r.LowConfidenceThreshold,
		Method:        method,
		Contributing:  judgments,
	}
	if resolved.CanonicalName == "" {
		resolved.CanonicalName = c.RawFieldName
	}

	if resolved.LowConfidence {
		zap.L().Info("consensus: low confidence resolution",
			zap.String("field", c.RawFieldName),
			zap.String("semantic_type", resolved.SemanticType),
			zap.Float64("confidence", confidence),
		)
	}
	return resolved, nil
}

// voteGroup returns the judgments of the winning categorical group.
// Ties break first by highest mean confidence within the tied groups,
// then by the summed trust weight of the tied groups' analyzers.
func (r *Resolver) voteGroup(judgments []model.Judgment, key func(model.Judgment) string) []model.Judgment {
	groups := make(map[string][]model.Judgment)
	for _, j := range judgments {
		k := key(j)
		groups[k] = append(groups[k], j)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		ga, gb := groups[keys[a]], groups[keys[b]]
		if len(ga) != len(gb) {
			return len(ga) > len(gb)
		}
		ma, mb := meanConfidence(ga), meanConfidence(gb)
		if ma != mb {
			return ma > mb
		}
		ta, tb := r.groupTrust(ga), r.groupTrust(gb)
		if ta != tb {
			return ta > tb
		}
		return keys[a] < keys[b] // deterministic final tie-break
	})

	return groups[keys[0]]
}

func (r *Resolver) groupTrust(judgments []model.Judgment) float64 {
	total := 0.0
	for _, j := range judgments {
		total += r.weight(j.AnalyzerID)
	}
	return total
}

func (r *Resolver) weight(analyzerID string) float64 {
	if r.Trust == nil {
		return 1.0
	}
	return r.Trust.Weight(analyzerID)
}

func meanConfidence(judgments []model.Judgment) float64 {
	if len(judgments) == 0 {
		return 0
	}
	sum := 0.0
	for _, j := range judgments {
		sum += j.Confidence
	}
	return sum / float64(len(judgments))
}

// highestConfidence returns the judgment with the highest confidence,
// preferring earlier judgments on exact ties.
func highestConfidence(judgments []model.Judgment) model.Judgment {
	best := judgments[0]
	for _, j := range judgments[1:] {
		if j.Confidence > best.Confidence {
			best = j
		}
	}
	return best
}

// bestFormula returns the highest-confidence non-empty formula. Formulas
// are free-form and must never be dropped when any judge saw one.
func bestFormula(judgments []model.Judgment) string {
	formula := ""
	bestConf := -1.0
	for _, j := range judgments {
		if j.Formula != "" && j.Confidence > bestConf {
			formula = j.Formula
			bestConf = j.Confidence
		}
	}
	return formula
}
