package targets

import (
	"math/rand/v2"

	"git.home.luguber.info/inful/codeworm/internal/analysis"
	"git.home.luguber.info/inful/codeworm/internal/model"
)

// Router dispatches a documentation flavor to its finder.
type Router struct {
	analyzer *analysis.Analyzer
}

// NewRouter builds a router over one analyzer instance.
func NewRouter(analyzer *analysis.Analyzer) *Router {
	return &Router{analyzer: analyzer}
}

// FindTargets returns ranked targets for the flavor, best first. Summary
// flavors and unknown flavors yield nothing.
func (r *Router) FindTargets(docType model.DocType, repo model.RepoEntry, limit int) []*model.DocumentationTarget {
	switch docType {
	case model.DocFunction, model.DocSecurityReview, model.DocPerformance, model.DocTIL:
		return FindFunctionTargets(r.analyzer, repo, docType, limit)
	case model.DocFile:
		return FindFileTargets(r.analyzer, repo, limit)
	case model.DocClass:
		return FindClassTargets(r.analyzer, repo, limit)
	case model.DocModule:
		return FindModuleTargets(repo, limit)
	case model.DocEvolution:
		return FindEvolutionTargets(r.analyzer, repo, limit)
	case model.DocPattern:
		return FindPatternTargets(r.analyzer, repo, limit)
	default:
		return nil
	}
}

// SelectDocType makes a weighted-random flavor choice from the configured
// weight map, skipping summary flavors and unknown names. An empty or
// fully-filtered map falls back to function_doc.
func SelectDocType(weights map[string]int, rng *rand.Rand) model.DocType {
	var types []model.DocType
	var typeWeights []int
	total := 0
	for name, weight := range weights {
		dt, ok := model.ParseDocType(name)
		if !ok || dt.IsSummary() || weight <= 0 {
			continue
		}
		types = append(types, dt)
		typeWeights = append(typeWeights, weight)
		total += weight
	}
	if total == 0 {
		return model.DocFunction
	}
	n := rng.IntN(total)
	for i, w := range typeWeights {
		n -= w
		if n < 0 {
			return types[i]
		}
	}
	return types[len(types)-1]
}

// DispatchableTypes lists the flavors from the weight map the supervisor
// may iterate after the weighted pick yields no target. Order follows map
// iteration.
func DispatchableTypes(weights map[string]int) []model.DocType {
	var out []model.DocType
	for name, weight := range weights {
		dt, ok := model.ParseDocType(name)
		if !ok || dt.IsSummary() || weight <= 0 {
			continue
		}
		out = append(out, dt)
	}
	if len(out) == 0 {
		out = append(out, model.DocFunction)
	}
	return out
}
