package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ExportSubmissionsCSV renders one row per submission with a column per
// catalog domain plus the overall index. Rows whose derived payload cannot
// be parsed keep their identity columns and leave the scores blank.
func ExportSubmissionsCSV(subs []*Submission, cat *Catalog) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"submission_id", "case_id", "participant_email", "lang", "version", "submitted_at"}
	for _, d := range cat.Domains {
		header = append(header, d.Key)
	}
	header = append(header, "overall")
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, sub := range subs {
		rec := []string{
			sub.ID,
			sub.CaseID,
			sub.ParticipantEmail,
			sub.Lang,
			sub.QuestionnaireVersion,
			sub.SubmittedAt.UTC().Format(time.RFC3339),
		}
		derived, err := ParseDerived(sub.DerivedJSON)
		for _, d := range cat.Domains {
			cell := ""
			if err == nil {
				if v, ok := derived.DomainScores[d.Key]; ok {
					cell = formatScore(v)
				}
			}
			rec = append(rec, cell)
		}
		overall := ""
		if err == nil && derived.Overall != nil {
			overall = formatScore(*derived.Overall)
		}
		rec = append(rec, overall)
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportCaseSummaryCSV renders the aggregate statistics of one case,
// one row per domain in catalog order plus an overall row.
func ExportCaseSummaryCSV(agg *CaseAggregate, cat *Catalog) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"domain", "mean", "std_dev", "n"}); err != nil {
		return nil, err
	}
	for _, d := range cat.Domains {
		st, ok := agg.Domains[d.Key]
		if !ok {
			continue
		}
		meanCell := ""
		if st.Mean.Defined {
			meanCell = formatScore(st.Mean.Value)
		}
		rec := []string{d.Key, meanCell, formatScore(st.StdDev), strconv.Itoa(st.N)}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	overall := ""
	if agg.OverallMean.Defined {
		overall = formatScore(agg.OverallMean.Value)
	}
	if err := w.Write([]string{"overall", overall, "", strconv.Itoa(agg.Participants)}); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
