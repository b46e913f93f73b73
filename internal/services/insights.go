package services

import (
	"encoding/json"
	"sort"
)

// SelectDiscussionDomains picks the domains worth a facilitated
// conversation: RED and AMBER rows only, RED before AMBER, riskier first
// within a band, cut off at maxN (default 3). Ties keep the order of the
// incoming table, so callers passing a catalog-ordered table get the
// catalog tiebreak for free.
func SelectDiscussionDomains(table []DomainScore, maxN int) []DomainScore {
	if maxN <= 0 {
		maxN = 3
	}
	out := make([]DomainScore, 0, len(table))
	for _, row := range table {
		if row.Band == BandRed || row.Band == BandAmber {
			out = append(out, row)
		}
	}
	bandRank := func(b Band) int {
		if b == BandRed {
			return 0
		}
		return 1
	}
	sort.SliceStable(out, func(i, j int) bool {
		if bandRank(out[i].Band) != bandRank(out[j].Band) {
			return bandRank(out[i].Band) < bandRank(out[j].Band)
		}
		return out[i].Risk > out[j].Risk
	})
	if len(out) > maxN {
		out = out[:maxN]
	}
	return out
}

// discussionPrompts is the fixed prompt catalog per domain. Selection
// order and cutoff are policy; the prompts themselves are a static lookup.
var discussionPrompts = map[string]map[string][]string{
	"corporate_governance": {
		"en": {
			"Who takes the final decision when management and family disagree?",
			"What would an outside board member change first?",
		},
		"el": {
			"Ποιος παίρνει την τελική απόφαση όταν διαφωνούν διοίκηση και οικογένεια;",
			"Τι θα άλλαζε πρώτο ένα εξωτερικό μέλος του συμβουλίου;",
		},
	},
	"family_governance": {
		"en": {
			"Which family decisions deserve a written rule rather than a tradition?",
			"When did the whole family last discuss the business together?",
		},
		"el": {
			"Ποιες οικογενειακές αποφάσεις χρειάζονται γραπτό κανόνα αντί για παράδοση;",
			"Πότε συζήτησε τελευταία φορά όλη η οικογένεια για την επιχείρηση;",
		},
	},
	"succession": {
		"en": {
			"If the current leader stepped back tomorrow, what happens on day one?",
			"What does the next leader still need to learn, and from whom?",
		},
		"el": {
			"Αν ο σημερινός ηγέτης αποχωρούσε αύριο, τι συμβαίνει την πρώτη μέρα;",
			"Τι πρέπει ακόμη να μάθει ο επόμενος ηγέτης, και από ποιον;",
		},
	},
	"ownership": {
		"en": {
			"What happens to the shares of a member who wants to exit?",
			"Is the dividend policy fair to members outside the business?",
		},
		"el": {
			"Τι συμβαίνει με τις μετοχές ενός μέλους που θέλει να αποχωρήσει;",
			"Είναι η μερισματική πολιτική δίκαιη για τα μέλη εκτός επιχείρησης;",
		},
	},
	"conflict_resolution": {
		"en": {
			"Where do disagreements go today when they cannot be resolved at the table?",
			"Which topic does the family avoid discussing, and at what cost?",
		},
		"el": {
			"Πού καταλήγουν σήμερα οι διαφωνίες όταν δεν λύνονται στο τραπέζι;",
			"Ποιο θέμα αποφεύγει να συζητήσει η οικογένεια, και με ποιο κόστος;",
		},
	},
	"next_generation": {
		"en": {
			"What must the next generation prove before taking responsibility?",
			"Does the next generation want the business, or inherit it by default?",
		},
		"el": {
			"Τι πρέπει να αποδείξει η επόμενη γενιά πριν αναλάβει ευθύνη;",
			"Θέλει η επόμενη γενιά την επιχείρηση, ή την κληρονομεί εξ ορισμού;",
		},
	},
}

// DiscussionPrompts returns the fixed prompts for a domain in lang,
// falling back to English.
func DiscussionPrompts(domainKey, lang string) []string {
	byLang, ok := discussionPrompts[domainKey]
	if !ok {
		return nil
	}
	if p := byLang[lang]; len(p) > 0 {
		return p
	}
	return byLang["en"]
}

// DiscussionTopic pairs a selected domain with its prompts.
type DiscussionTopic struct {
	DomainKey  string   `json:"domain_key"`
	DomainName string   `json:"domain_name"`
	Band       Band     `json:"band"`
	Risk       float64  `json:"risk"`
	Prompts    []string `json:"prompts"`
}

// ParticipantReport is the data shape handed to the rendering collaborator
// for a single submission.
type ParticipantReport struct {
	SubmissionID     string            `json:"submission_id"`
	CaseID           string            `json:"case_id"`
	ParticipantEmail string            `json:"participant_email"`
	Lang             string            `json:"lang"`
	Domains          []DomainScore     `json:"domains"`
	Overall          Score             `json:"overall"`
	Discussion       []DiscussionTopic `json:"discussion"`
}

// BuildParticipantReport recomputes a submission's domain table from its
// stored answers and attaches the ranked discussion selection.
func BuildParticipantReport(sub *Submission, cat *Catalog, lang string) (*ParticipantReport, error) {
	var answers map[string]int
	if err := json.Unmarshal([]byte(sub.AnswersJSON), &answers); err != nil {
		return nil, NewInvalidError("answers payload: " + err.Error())
	}
	if lang == "" {
		lang = sub.Lang
	}
	table := RankByRisk(BuildDomainTable(answers, cat))
	overall := WeightedIndex(ComputeDomainScores(answers, cat), cat)
	selected := SelectDiscussionDomains(table, 3)
	topics := make([]DiscussionTopic, 0, len(selected))
	for _, row := range selected {
		name := ""
		if d := cat.DomainByKey(row.DomainKey); d != nil {
			name = d.NameI18n[lang]
			if name == "" {
				name = d.NameI18n["en"]
			}
		}
		topics = append(topics, DiscussionTopic{
			DomainKey:  row.DomainKey,
			DomainName: name,
			Band:       row.Band,
			Risk:       row.Risk,
			Prompts:    DiscussionPrompts(row.DomainKey, lang),
		})
	}
	return &ParticipantReport{
		SubmissionID:     sub.ID,
		CaseID:           sub.CaseID,
		ParticipantEmail: sub.ParticipantEmail,
		Lang:             lang,
		Domains:          table,
		Overall:          overall,
		Discussion:       topics,
	}, nil
}
