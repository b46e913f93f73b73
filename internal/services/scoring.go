package services

import "sort"

// Band is the RAG maturity classification of a domain average.
type Band string

const (
	BandRed   Band = "RED"
	BandAmber Band = "AMBER"
	BandGreen Band = "GREEN"
)

// Score is a float that may be undefined. Undefined scores never take part
// in arithmetic; they propagate instead of collapsing to a sentinel value.
type Score struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Defined wraps a concrete score value.
func Defined(v float64) Score { return Score{Value: v, Defined: true} }

// Undefined is the absent score.
func Undefined() Score { return Score{} }

// AnswerMin and AnswerMax bound a valid Likert answer.
const (
	AnswerMin = 1
	AnswerMax = 5
)

// DomainScore is one row of the ranked domain table.
type DomainScore struct {
	DomainKey string  `json:"domain_key"`
	Avg       Score   `json:"avg_score"`
	Band      Band    `json:"band"`
	Risk      float64 `json:"risk"`
	Weight    float64 `json:"weight"`
}

// ComputeDomainScores averages the integer answers of exactly each
// domain's questions. A domain missing any required answer scores
// undefined; no default is ever substituted.
func ComputeDomainScores(answers map[string]int, cat *Catalog) map[string]Score {
	out := make(map[string]Score, len(cat.Domains))
	for _, d := range cat.Domains {
		sum, n := 0, 0
		complete := true
		for _, q := range cat.QuestionsByDomain(d.Key) {
			v, ok := answers[q.ID]
			if !ok {
				complete = false
				break
			}
			sum += v
			n++
		}
		if !complete || n == 0 {
			out[d.Key] = Undefined()
			continue
		}
		out[d.Key] = Defined(float64(sum) / float64(n))
	}
	return out
}

// BandForScore classifies a domain average. Boundaries are half-open on
// the low end: a value exactly on a boundary belongs to the higher band.
// Values outside [0, 5.01) fall back to AMBER as a fail-safe.
func BandForScore(v float64) Band {
	switch {
	case v >= 0 && v < 2.5:
		return BandRed
	case v >= 2.5 && v < 3.5:
		return BandAmber
	case v >= 3.5 && v < 5.01:
		return BandGreen
	default:
		return BandAmber
	}
}

// WeightedIndex remaps the weighted domain average onto [0,100]:
// all-1 answers land on exactly 0, all-5 on exactly 100. Any undefined
// domain makes the whole index undefined.
func WeightedIndex(scores map[string]Score, cat *Catalog) Score {
	total := 0.0
	for _, d := range cat.Domains {
		s, ok := scores[d.Key]
		if !ok || !s.Defined {
			return Undefined()
		}
		total += s.Value * d.Weight
	}
	return Defined((total - 1.0) / 4.0 * 100.0)
}

// RiskPriority ranks a domain for attention: low maturity and high weight
// both push it up. The value is a ranking heuristic, not a probability.
func RiskPriority(avg, weight float64) float64 {
	return (6.0 - avg) * weight
}

// BuildDomainTable computes the per-domain score rows in catalog order.
// Rows with undefined averages carry zero risk and the AMBER fallback band.
func BuildDomainTable(answers map[string]int, cat *Catalog) []DomainScore {
	scores := ComputeDomainScores(answers, cat)
	out := make([]DomainScore, 0, len(cat.Domains))
	for _, d := range cat.Domains {
		row := DomainScore{DomainKey: d.Key, Avg: scores[d.Key], Weight: d.Weight}
		if row.Avg.Defined {
			row.Band = BandForScore(row.Avg.Value)
			row.Risk = RiskPriority(row.Avg.Value, d.Weight)
		} else {
			row.Band = BandAmber
		}
		out = append(out, row)
	}
	return out
}

// RankByRisk orders a domain table by descending risk. The sort is stable,
// so ties keep the catalog declaration order of the input.
func RankByRisk(table []DomainScore) []DomainScore {
	out := append([]DomainScore(nil), table...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Risk > out[j].Risk })
	return out
}
