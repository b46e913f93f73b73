package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InviteStore abstracts the persistence needed by the invite lifecycle.
// ConsumeInviteAndCreateSubmission is the one atomic operation in the
// system: the conditional use-count increment and the submission insert
// must commit together or not at all.
type InviteStore interface {
	AddCase(c *Case) error
	GetCase(id string) (*Case, error)
	ListCases() ([]*Case, error)

	AddInvite(inv *Invite) error
	GetInvite(id string) (*Invite, error)
	GetInviteByTokenHash(hash string) (*Invite, error)
	ListInvitesByCase(caseID string) ([]*Invite, error)
	UpdateInviteStatus(id string, status InviteStatus) error

	// ConsumeInviteAndCreateSubmission atomically re-checks that the invite
	// identified by hash is usable at now, increments its use count
	// (flipping status to USED at the cap) and inserts sub. It returns
	// (false, nil) when the invite cannot be consumed.
	ConsumeInviteAndCreateSubmission(hash string, now time.Time, sub *Submission) (bool, error)

	GetSubmission(id string) (*Submission, error)
	ListSubmissionsByCase(caseID string) ([]*Submission, error)

	PutInboxEntry(e *InboxEntry) error
	AddAudit(entry AuditEntry)
}

// InviteService owns cases, invites and the submission workflow.
type InviteService struct {
	store   InviteStore
	catalog *Catalog
	now     func() time.Time
	idGen   func(n int) string
	rawTok  func() string
}

func NewInviteService(store InviteStore, cat *Catalog) *InviteService {
	return &InviteService{
		store:   store,
		catalog: cat,
		now:     func() time.Time { return time.Now().UTC() },
		idGen:   shortID,
		rawTok:  func() string { return randomToken(32) },
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		log.Printf("invite service: generate token: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// HashToken derives the stored form of a raw invite token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateCase registers a new client company.
func (s *InviteService) CreateCase(companyName string) (*Case, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, NewInvalidError("company_name required")
	}
	c := &Case{ID: s.idGen(12), CompanyName: companyName, CreatedAt: s.now()}
	if err := s.store.AddCase(c); err != nil {
		return nil, NewStorageError(err.Error())
	}
	return c, nil
}

func (s *InviteService) ListCases() ([]*Case, error) {
	cases, err := s.store.ListCases()
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	return cases, nil
}

// CreatedInvite carries the raw token back to the administrator exactly
// once. The token is never persisted and cannot be recovered later.
type CreatedInvite struct {
	Invite   *Invite `json:"invite"`
	RawToken string  `json:"token"`
}

// CreateInvite issues a fresh invite for one participant. ttl bounds the
// token validity window; maxUses below 1 defaults to single use.
func (s *InviteService) CreateInvite(caseID, email string, ttl time.Duration, maxUses int) (*CreatedInvite, error) {
	caseID = strings.TrimSpace(caseID)
	email = strings.TrimSpace(email)
	if caseID == "" || email == "" {
		return nil, NewInvalidError("case_id and participant_email required")
	}
	c, err := s.store.GetCase(caseID)
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	if c == nil {
		return nil, NewNotFoundError("case not found")
	}
	if maxUses < 1 {
		maxUses = 1
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	raw := s.rawTok()
	if raw == "" {
		return nil, NewStorageError("token generation failed")
	}
	now := s.now()
	inv := &Invite{
		ID:               s.idGen(12),
		CaseID:           caseID,
		ParticipantEmail: email,
		TokenHash:        HashToken(raw),
		TokenExpiresAt:   now.Add(ttl),
		MaxUses:          maxUses,
		UsesCount:        0,
		Status:           InviteActive,
		CreatedAt:        now,
	}
	if err := s.store.AddInvite(inv); err != nil {
		return nil, NewStorageError(err.Error())
	}
	s.store.AddAudit(AuditEntry{Time: now, Actor: "admin", Action: "create_invite", Target: inv.ID, Note: email})
	return &CreatedInvite{Invite: inv, RawToken: raw}, nil
}

// ListInvites returns the invites of a case.
func (s *InviteService) ListInvites(caseID string) ([]*Invite, error) {
	invs, err := s.store.ListInvitesByCase(caseID)
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	return invs, nil
}

// RevokeInvite withdraws an invite so its token can no longer be consumed.
func (s *InviteService) RevokeInvite(id, actor string) error {
	inv, err := s.store.GetInvite(id)
	if err != nil {
		return NewStorageError(err.Error())
	}
	if inv == nil {
		return NewNotFoundError("invite not found")
	}
	if err := s.store.UpdateInviteStatus(id, InviteRevoked); err != nil {
		return NewStorageError(err.Error())
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "revoke_invite", Target: id})
	return nil
}

// InviteValidation is the uniform answer to a token check. Invalid tokens
// of every kind produce the same shape with Valid=false and nothing else
// populated, so callers cannot distinguish unknown from expired or spent.
type InviteValidation struct {
	Valid            bool         `json:"valid"`
	CaseID           string       `json:"case_id,omitempty"`
	ParticipantEmail string       `json:"participant_email,omitempty"`
	Status           InviteStatus `json:"status,omitempty"`
	ReadOnly         bool         `json:"read_only,omitempty"`
}

// ValidateInvite looks a raw token up by hash. A USED invite still
// validates, flagged read-only, so the participant can revisit their
// report without being able to resubmit.
func (s *InviteService) ValidateInvite(rawToken string) (*InviteValidation, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return &InviteValidation{}, nil
	}
	inv, err := s.store.GetInviteByTokenHash(HashToken(rawToken))
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	if inv == nil {
		return &InviteValidation{}, nil
	}
	now := s.now()
	switch {
	case inv.Status == InviteUsed:
		return &InviteValidation{
			Valid:            true,
			CaseID:           inv.CaseID,
			ParticipantEmail: inv.ParticipantEmail,
			Status:           InviteUsed,
			ReadOnly:         true,
		}, nil
	case inv.Usable(now):
		return &InviteValidation{
			Valid:            true,
			CaseID:           inv.CaseID,
			ParticipantEmail: inv.ParticipantEmail,
			Status:           InviteActive,
		}, nil
	default:
		// Revoked, expired or exhausted: indistinguishable from unknown.
		return &InviteValidation{}, nil
	}
}

// SubmitAssessment records one participant's completed answer set against
// the invite identified by rawToken. The answer set must cover the full
// catalog; derived scores are recomputed here so the stored cache can
// never disagree with the scoring engine. Consuming the invite and
// inserting the submission happen as one atomic unit; the inbox write
// afterwards is best-effort and can never fail the submission.
func (s *InviteService) SubmitAssessment(rawToken, lang string, answers map[string]int, profile map[string]any) (string, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return "", NewInviteInvalidError()
	}
	hash := HashToken(rawToken)
	inv, err := s.store.GetInviteByTokenHash(hash)
	if err != nil {
		return "", NewStorageError(err.Error())
	}
	now := s.now()
	if inv == nil || !inv.Usable(now) {
		return "", NewInviteInvalidError()
	}

	if err := checkAnswersComplete(answers, s.catalog); err != nil {
		return "", err
	}

	derived := BuildDerived(answers, s.catalog)
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return "", NewInvalidError("answers: " + err.Error())
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", NewInvalidError("profile: " + err.Error())
	}
	derivedJSON, err := json.Marshal(derived)
	if err != nil {
		return "", NewInvalidError("derived: " + err.Error())
	}

	sub := &Submission{
		ID:                   s.idGen(12),
		CaseID:               inv.CaseID,
		ParticipantEmail:     inv.ParticipantEmail,
		QuestionnaireVersion: s.catalog.Version,
		Lang:                 lang,
		AnswersJSON:          string(answersJSON),
		ProfileJSON:          string(profileJSON),
		DerivedJSON:          string(derivedJSON),
		SubmittedAt:          now,
	}

	// Re-check and consume in one shot: the store only commits when the
	// invite is still usable at the instant of the write, which closes the
	// validate/submit race for duplicate requests.
	ok, err := s.store.ConsumeInviteAndCreateSubmission(hash, now, sub)
	if err != nil {
		return "", NewStorageError(err.Error())
	}
	if !ok {
		return "", NewInviteInvalidError()
	}

	if err := s.store.PutInboxEntry(&InboxEntry{SubmissionID: sub.ID}); err != nil {
		// Observability must never block the primary transaction.
		log.Printf("invite service: inbox entry for %s: %v", sub.ID, err)
	}

	return sub.ID, nil
}

// SubmitAssessmentVersioned is SubmitAssessment with an explicit client
// questionnaire version; a stale wizard is rejected before any write.
func (s *InviteService) SubmitAssessmentVersioned(rawToken, version, lang string, answers map[string]int, profile map[string]any) (string, error) {
	if version != s.catalog.Version {
		return "", NewVersionMismatchError("questionnaire version " + version + " is not current")
	}
	return s.SubmitAssessment(rawToken, lang, answers, profile)
}

// ListSubmissions returns the submissions of a case.
func (s *InviteService) ListSubmissions(caseID string) ([]*Submission, error) {
	subs, err := s.store.ListSubmissionsByCase(caseID)
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	return subs, nil
}

// GetSubmission loads one submission by id.
func (s *InviteService) GetSubmission(id string) (*Submission, error) {
	sub, err := s.store.GetSubmission(id)
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	if sub == nil {
		return nil, NewNotFoundError("submission not found")
	}
	return sub, nil
}

func checkAnswersComplete(answers map[string]int, cat *Catalog) error {
	for _, q := range cat.Questions {
		v, ok := answers[q.ID]
		if !ok {
			return NewIncompleteSubmissionError("missing answer for question " + q.ID)
		}
		if v < AnswerMin || v > AnswerMax {
			return NewIncompleteSubmissionError("answer for question " + q.ID + " out of range")
		}
	}
	return nil
}
