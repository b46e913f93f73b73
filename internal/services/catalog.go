package services

import (
	"fmt"
	"math"
)

// Domain is a weighted governance theme. Declaration order doubles as the
// tiebreak order whenever ranked views need a stable ordering.
type Domain struct {
	Key      string            `json:"key"`
	Weight   float64           `json:"weight"`
	NameI18n map[string]string `json:"name_i18n"`
}

// Question belongs to exactly one domain. IDs follow the
// "<domain-ordinal>.<question-ordinal>" convention of the questionnaire.
type Question struct {
	ID        string            `json:"id"`
	DomainKey string            `json:"domain_key"`
	TextI18n  map[string]string `json:"text_i18n"`
}

// Catalog is the immutable questionnaire definition, loaded once at
// process start and validated before anything else runs.
type Catalog struct {
	Version   string
	Domains   []Domain
	Questions []Question
}

// QuestionnaireVersion is the schema version stamped on every submission.
const QuestionnaireVersion = "v1"

// DefaultCatalog returns the built-in Legacy360 questionnaire: six weighted
// family-governance domains with Greek and English question text.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Version: QuestionnaireVersion,
		Domains: []Domain{
			{Key: "corporate_governance", Weight: 0.20, NameI18n: map[string]string{"en": "Corporate Governance", "el": "Εταιρική Διακυβέρνηση"}},
			{Key: "family_governance", Weight: 0.20, NameI18n: map[string]string{"en": "Family Governance", "el": "Οικογενειακή Διακυβέρνηση"}},
			{Key: "succession", Weight: 0.20, NameI18n: map[string]string{"en": "Succession Planning", "el": "Σχεδιασμός Διαδοχής"}},
			{Key: "ownership", Weight: 0.15, NameI18n: map[string]string{"en": "Ownership & Legal Structure", "el": "Ιδιοκτησία & Νομική Δομή"}},
			{Key: "conflict_resolution", Weight: 0.15, NameI18n: map[string]string{"en": "Conflict & Communication", "el": "Συγκρούσεις & Επικοινωνία"}},
			{Key: "next_generation", Weight: 0.10, NameI18n: map[string]string{"en": "Next Generation Readiness", "el": "Ετοιμότητα Επόμενης Γενιάς"}},
		},
		Questions: []Question{
			{ID: "1.1", DomainKey: "corporate_governance", TextI18n: map[string]string{"en": "The board meets regularly with a formal agenda and minutes.", "el": "Το διοικητικό συμβούλιο συνεδριάζει τακτικά με επίσημη ατζέντα και πρακτικά."}},
			{ID: "1.2", DomainKey: "corporate_governance", TextI18n: map[string]string{"en": "Roles and responsibilities of executives are clearly documented.", "el": "Οι ρόλοι και οι αρμοδιότητες των στελεχών είναι σαφώς καταγεγραμμένοι."}},
			{ID: "1.3", DomainKey: "corporate_governance", TextI18n: map[string]string{"en": "Independent, non-family voices participate in key decisions.", "el": "Ανεξάρτητες, μη οικογενειακές φωνές συμμετέχουν στις βασικές αποφάσεις."}},
			{ID: "2.1", DomainKey: "family_governance", TextI18n: map[string]string{"en": "The family has a written constitution or charter.", "el": "Η οικογένεια διαθέτει γραπτό καταστατικό ή χάρτα."}},
			{ID: "2.2", DomainKey: "family_governance", TextI18n: map[string]string{"en": "Family council meetings are held on a regular schedule.", "el": "Το οικογενειακό συμβούλιο συνεδριάζει σε τακτική βάση."}},
			{ID: "2.3", DomainKey: "family_governance", TextI18n: map[string]string{"en": "Employment of family members follows agreed, transparent rules.", "el": "Η απασχόληση μελών της οικογένειας ακολουθεί συμφωνημένους, διαφανείς κανόνες."}},
			{ID: "3.1", DomainKey: "succession", TextI18n: map[string]string{"en": "A written succession plan exists for the leadership of the business.", "el": "Υπάρχει γραπτό πλάνο διαδοχής για την ηγεσία της επιχείρησης."}},
			{ID: "3.2", DomainKey: "succession", TextI18n: map[string]string{"en": "Successor candidates have been identified and are being developed.", "el": "Έχουν εντοπιστεί υποψήφιοι διάδοχοι και αναπτύσσονται συστηματικά."}},
			{ID: "3.3", DomainKey: "succession", TextI18n: map[string]string{"en": "The current leader has a defined timeline for transition.", "el": "Ο σημερινός ηγέτης έχει καθορισμένο χρονοδιάγραμμα μετάβασης."}},
			{ID: "4.1", DomainKey: "ownership", TextI18n: map[string]string{"en": "Shareholder agreements cover transfers, exits and valuation.", "el": "Οι συμφωνίες μετόχων καλύπτουν μεταβιβάσεις, αποχωρήσεις και αποτίμηση."}},
			{ID: "4.2", DomainKey: "ownership", TextI18n: map[string]string{"en": "Estate and tax planning for the owners is up to date.", "el": "Ο κληρονομικός και φορολογικός σχεδιασμός των ιδιοκτητών είναι ενημερωμένος."}},
			{ID: "4.3", DomainKey: "ownership", TextI18n: map[string]string{"en": "Dividend and reinvestment policy is agreed and documented.", "el": "Η πολιτική μερισμάτων και επανεπένδυσης είναι συμφωνημένη και καταγεγραμμένη."}},
			{ID: "5.1", DomainKey: "conflict_resolution", TextI18n: map[string]string{"en": "Disagreements between family members are resolved through an agreed process.", "el": "Οι διαφωνίες μεταξύ μελών της οικογένειας επιλύονται με συμφωνημένη διαδικασία."}},
			{ID: "5.2", DomainKey: "conflict_resolution", TextI18n: map[string]string{"en": "Business and family matters are discussed in separate forums.", "el": "Τα επιχειρηματικά και τα οικογενειακά θέματα συζητούνται σε χωριστά όργανα."}},
			{ID: "5.3", DomainKey: "conflict_resolution", TextI18n: map[string]string{"en": "All branches of the family feel heard in important decisions.", "el": "Όλοι οι κλάδοι της οικογένειας αισθάνονται ότι ακούγονται στις σημαντικές αποφάσεις."}},
			{ID: "6.1", DomainKey: "next_generation", TextI18n: map[string]string{"en": "The next generation understands the business and its strategy.", "el": "Η επόμενη γενιά κατανοεί την επιχείρηση και τη στρατηγική της."}},
			{ID: "6.2", DomainKey: "next_generation", TextI18n: map[string]string{"en": "Next-generation members gain experience outside the family business.", "el": "Τα μέλη της επόμενης γενιάς αποκτούν εμπειρία εκτός της οικογενειακής επιχείρησης."}},
			{ID: "6.3", DomainKey: "next_generation", TextI18n: map[string]string{"en": "There is a development path for next-generation leaders.", "el": "Υπάρχει πλάνο ανάπτυξης για τους ηγέτες της επόμενης γενιάς."}},
		},
	}
}

// Validate checks the structural invariants of the catalog. It is called
// once at startup; a failing catalog is a programming error, not runtime
// input, so callers treat an error as fatal.
func (c *Catalog) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("catalog: no domains defined")
	}
	domainKeys := map[string]bool{}
	sum := 0.0
	for _, d := range c.Domains {
		if d.Key == "" {
			return fmt.Errorf("catalog: domain with empty key")
		}
		if domainKeys[d.Key] {
			return fmt.Errorf("catalog: duplicate domain key %q", d.Key)
		}
		domainKeys[d.Key] = true
		if d.Weight <= 0 || d.Weight > 1 {
			return fmt.Errorf("catalog: domain %q weight %v outside (0,1]", d.Key, d.Weight)
		}
		sum += d.Weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("catalog: domain weights sum to %v, want 1.0", sum)
	}
	questionIDs := map[string]bool{}
	perDomain := map[string]int{}
	for _, q := range c.Questions {
		if q.ID == "" {
			return fmt.Errorf("catalog: question with empty id")
		}
		if questionIDs[q.ID] {
			return fmt.Errorf("catalog: duplicate question id %q", q.ID)
		}
		questionIDs[q.ID] = true
		if !domainKeys[q.DomainKey] {
			return fmt.Errorf("catalog: question %q references unknown domain %q", q.ID, q.DomainKey)
		}
		if len(q.TextI18n) == 0 {
			return fmt.Errorf("catalog: question %q has no text", q.ID)
		}
		perDomain[q.DomainKey]++
	}
	for key := range domainKeys {
		if perDomain[key] == 0 {
			return fmt.Errorf("catalog: domain %q has no questions", key)
		}
	}
	return nil
}

// DomainByKey returns the domain for key, or nil.
func (c *Catalog) DomainByKey(key string) *Domain {
	for i := range c.Domains {
		if c.Domains[i].Key == key {
			return &c.Domains[i]
		}
	}
	return nil
}

// QuestionsByDomain returns the domain's questions in catalog order.
func (c *Catalog) QuestionsByDomain(key string) []Question {
	out := make([]Question, 0, len(c.Questions))
	for _, q := range c.Questions {
		if q.DomainKey == key {
			out = append(out, q)
		}
	}
	return out
}

// QuestionIDs returns every question id in catalog order.
func (c *Catalog) QuestionIDs() []string {
	out := make([]string, 0, len(c.Questions))
	for _, q := range c.Questions {
		out = append(out, q.ID)
	}
	return out
}
