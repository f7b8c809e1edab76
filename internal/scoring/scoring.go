// Package scoring ranks code candidates by how interesting they are to
// document, combining structural metrics, git churn and pattern bonuses
// into a bounded 0..100 score.
package scoring

import (
	"strings"

	"git.home.luguber.info/inful/codeworm/internal/gitstats"
)

// Sub-score caps. Each raw metric is normalized via min(x/cap, 1)*100.
const (
	complexityCap = 20
	lengthCap     = 100
	nestingCap    = 5
	paramCap      = 7
	churnCap      = 5
	noveltyDays   = 30
)

// Component weights, summing to 1.0.
const (
	weightComplexity = 0.35
	weightLength     = 0.15
	weightNesting    = 0.15
	weightParams     = 0.10
	weightChurn      = 0.15
	weightNovelty    = 0.10
)

// Pattern bonuses, additive on top of the weighted base.
const (
	bonusDecorator      = 5
	bonusAsync          = 5
	bonusContextManager = 10
	bonusGenerator      = 8
	bonusClassMethod    = 3
	bonusProperty       = 3
	bonusAbstract       = 8
	bonusDataclass      = 7
)

// Metrics are the structural inputs from the complexity analyzer.
type Metrics struct {
	Cyclomatic      int
	NLOC            int
	MaxNestingDepth int
	ParameterCount  int
}

// Score is a computed interest score with per-component breakdown.
// Components carry their weight already applied.
type Score struct {
	Total        float64
	Complexity   float64
	Length       float64
	Nesting      float64
	Parameters   float64
	Churn        float64
	Novelty      float64
	PatternBonus float64
}

// Rating buckets the total for logs and the analyze command.
func (s Score) Rating() string {
	switch {
	case s.Total >= 70:
		return "highly_interesting"
	case s.Total >= 50:
		return "interesting"
	case s.Total >= 30:
		return "moderate"
	default:
		return "low"
	}
}

// Scorer computes interest scores. The zero value is usable.
type Scorer struct{}

func normalize(value, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	r := value / limit
	if r > 1 {
		r = 1
	}
	if r < 0 {
		r = 0
	}
	return r * 100
}

// Score combines metrics, git stats and pattern detection. gitStats may be
// the zero value for files outside version control.
func (Scorer) Score(m Metrics, gitStats gitstats.FileStats, decorators []string, isAsync bool, source string) Score {
	complexity := normalize(float64(m.Cyclomatic), complexityCap)
	length := normalize(float64(m.NLOC), lengthCap)
	nesting := normalize(float64(m.MaxNestingDepth), nestingCap)
	params := normalize(float64(m.ParameterCount), paramCap)
	churn := normalize(float64(gitStats.CommitCount30d), churnCap)

	daysOld := gitStats.DaysSinceModified()
	novelty := float64(noveltyDays-daysOld) / noveltyDays * 100
	if novelty < 0 {
		novelty = 0
	}

	bonus := patternBonus(decorators, isAsync, source)

	s := Score{
		Complexity:   complexity * weightComplexity,
		Length:       length * weightLength,
		Nesting:      nesting * weightNesting,
		Parameters:   params * weightParams,
		Churn:        churn * weightChurn,
		Novelty:      novelty * weightNovelty,
		PatternBonus: bonus,
	}
	s.Total = s.Complexity + s.Length + s.Nesting + s.Parameters + s.Churn + s.Novelty + bonus
	if s.Total > 100 {
		s.Total = 100
	}
	return s
}

// WorthDocumenting applies the structural floor; the supervisor layers the
// memory check on top.
func WorthDocumenting(s Score, lineCount int) bool {
	return s.Total >= 25 && lineCount >= 10
}

func patternBonus(decorators []string, isAsync bool, source string) float64 {
	bonus := 0.0
	if isAsync {
		bonus += bonusAsync
	}
	if len(decorators) > 0 {
		bonus += float64(len(decorators) * bonusDecorator)
		text := strings.ToLower(strings.Join(decorators, " "))
		if strings.Contains(text, "property") {
			bonus += bonusProperty
		}
		if strings.Contains(text, "classmethod") || strings.Contains(text, "staticmethod") {
			bonus += bonusClassMethod
		}
		if strings.Contains(text, "abstractmethod") {
			bonus += bonusAbstract
		}
		if strings.Contains(text, "dataclass") {
			bonus += bonusDataclass
		}
	}
	if strings.Contains(source, "yield") {
		bonus += bonusGenerator
	}
	if strings.Contains(source, "__enter__") || strings.Contains(source, "__exit__") {
		bonus += bonusContextManager
	}
	return bonus
}
