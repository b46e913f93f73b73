package services

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// Derived is the typed form of a submission's cached score payload.
type Derived struct {
	DomainScores map[string]float64 `json:"domain_scores"`
	Overall      *float64           `json:"overall,omitempty"`
}

// BuildDerived computes the cache payload persisted alongside a submission.
func BuildDerived(answers map[string]int, cat *Catalog) Derived {
	scores := ComputeDomainScores(answers, cat)
	d := Derived{DomainScores: map[string]float64{}}
	for key, s := range scores {
		if s.Defined {
			d.DomainScores[key] = s.Value
		}
	}
	if overall := WeightedIndex(scores, cat); overall.Defined {
		v := overall.Value
		d.Overall = &v
	}
	return d
}

// ParseDerived decodes a stored derived payload. Legacy rows sometimes hold
// the JSON object double-encoded as a string; both shapes are accepted.
// Callers skip the record on error rather than aborting the batch.
func ParseDerived(raw string) (*Derived, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, NewInvalidError("empty derived payload")
	}
	if strings.HasPrefix(raw, "\"") {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil, err
		}
		raw = inner
	}
	var d Derived
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	if d.DomainScores == nil {
		d.DomainScores = map[string]float64{}
	}
	return &d, nil
}

// DomainStat is the cross-participant statistic for one domain.
type DomainStat struct {
	DomainKey string  `json:"domain_key"`
	Mean      Score   `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	N         int     `json:"n"`
}

// CaseAggregate combines all submissions of one case.
type CaseAggregate struct {
	CaseID       string                `json:"case_id"`
	Participants int                   `json:"participants"`
	Domains      map[string]DomainStat `json:"domains"`
	OverallMean  Score                 `json:"overall_mean"`
	Alpha        float64               `json:"alpha"`
	AlphaN       int                   `json:"alpha_n"`
	Skipped      int                   `json:"skipped"`
}

// AggregateSubmissions folds every submission of a case into per-domain
// means and population standard deviations. A record whose derived payload
// fails to parse is skipped and counted, never fatal. Participants counts
// input submissions, which can exceed the per-domain contributor counts.
func AggregateSubmissions(caseID string, subs []*Submission, cat *Catalog) *CaseAggregate {
	agg := &CaseAggregate{
		CaseID:       caseID,
		Participants: len(subs),
		Domains:      map[string]DomainStat{},
	}
	perDomain := map[string][]float64{}
	overalls := []float64{}
	for _, sub := range subs {
		d, err := ParseDerived(sub.DerivedJSON)
		if err != nil {
			agg.Skipped++
			continue
		}
		for key, v := range d.DomainScores {
			perDomain[key] = append(perDomain[key], v)
		}
		if d.Overall != nil {
			overalls = append(overalls, *d.Overall)
		}
	}
	for _, dom := range cat.Domains {
		vals := perDomain[dom.Key]
		stat := DomainStat{DomainKey: dom.Key, N: len(vals)}
		if len(vals) > 0 {
			stat.Mean = Defined(mean(vals))
		}
		if len(vals) >= 2 {
			stat.StdDev = popStdDev(vals)
		}
		agg.Domains[dom.Key] = stat
	}
	if len(overalls) > 0 {
		agg.OverallMean = Defined(mean(overalls))
	}
	matrix := AnswerMatrix(subs, cat)
	agg.Alpha = CronbachAlpha(matrix)
	agg.AlphaN = len(matrix)
	return agg
}

// TopMisaligned returns up to n domains ordered by descending standard
// deviation, the domains participants disagree on most. Ties keep catalog
// order.
func TopMisaligned(agg *CaseAggregate, cat *Catalog, n int) []DomainStat {
	if n <= 0 {
		n = 3
	}
	out := statsInCatalogOrder(agg, cat)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StdDev > out[j].StdDev })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// LowestMaturity returns up to n domains ordered by ascending mean score.
// Domains with no contributors are excluded.
func LowestMaturity(agg *CaseAggregate, cat *Catalog, n int) []DomainStat {
	if n <= 0 {
		n = 3
	}
	all := statsInCatalogOrder(agg, cat)
	out := make([]DomainStat, 0, len(all))
	for _, st := range all {
		if st.Mean.Defined {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean.Value < out[j].Mean.Value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func statsInCatalogOrder(agg *CaseAggregate, cat *Catalog) []DomainStat {
	out := make([]DomainStat, 0, len(cat.Domains))
	for _, d := range cat.Domains {
		if st, ok := agg.Domains[d.Key]; ok {
			out = append(out, st)
		}
	}
	return out
}

// AnswerMatrix builds a [participants][questions] matrix from the stored
// raw answers, keeping only rows that answered every catalog question.
func AnswerMatrix(subs []*Submission, cat *Catalog) [][]float64 {
	ids := cat.QuestionIDs()
	matrix := make([][]float64, 0, len(subs))
	for _, sub := range subs {
		var answers map[string]int
		if err := json.Unmarshal([]byte(sub.AnswersJSON), &answers); err != nil {
			continue
		}
		row := make([]float64, 0, len(ids))
		complete := true
		for _, id := range ids {
			v, ok := answers[id]
			if !ok {
				complete = false
				break
			}
			row = append(row, float64(v))
		}
		if complete {
			matrix = append(matrix, row)
		}
	}
	return matrix
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// popStdDev is the population standard deviation (divide by N, ddof=0).
func popStdDev(vals []float64) float64 {
	return math.Sqrt(popVariance(vals))
}

// AggregationStore lists the stored submissions the engine folds over.
type AggregationStore interface {
	ListSubmissionsByCase(caseID string) ([]*Submission, error)
}

// AggregationService computes case-level statistics on demand.
type AggregationService struct {
	store   AggregationStore
	catalog *Catalog
}

func NewAggregationService(store AggregationStore, cat *Catalog) *AggregationService {
	return &AggregationService{store: store, catalog: cat}
}

// AggregateCase loads every submission for caseID and aggregates them.
func (s *AggregationService) AggregateCase(caseID string) (*CaseAggregate, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, NewInvalidError("case_id required")
	}
	subs, err := s.store.ListSubmissionsByCase(caseID)
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	return AggregateSubmissions(caseID, subs, s.catalog), nil
}
