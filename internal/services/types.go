package services

import "time"

// InviteStatus tracks the lifecycle of an invite token.
type InviteStatus string

const (
	InviteActive  InviteStatus = "ACTIVE"
	InviteUsed    InviteStatus = "USED"
	InviteExpired InviteStatus = "EXPIRED"
	InviteRevoked InviteStatus = "REVOKED"
)

// Case groups the submissions of one client company.
type Case struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Invite is a capability granting one participant the right to submit
// one assessment for one case. Only the sha256 hash of the raw token is
// ever stored; the raw value lives in the participant's link.
type Invite struct {
	ID               string       `json:"id"`
	CaseID           string       `json:"case_id"`
	ParticipantEmail string       `json:"participant_email"`
	TokenHash        string       `json:"-"`
	TokenExpiresAt   time.Time    `json:"token_expires_at"`
	MaxUses          int          `json:"max_uses"`
	UsesCount        int          `json:"uses_count"`
	Status           InviteStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Expired reports whether the token window has passed. Expiry is evaluated
// against the caller's clock; no background job flips the row.
func (i *Invite) Expired(now time.Time) bool {
	return now.After(i.TokenExpiresAt)
}

// Exhausted reports whether every permitted use has been consumed.
func (i *Invite) Exhausted() bool {
	return i.UsesCount >= i.MaxUses
}

// Usable reports whether a submission may still consume this invite.
func (i *Invite) Usable(now time.Time) bool {
	return i.Status == InviteActive && !i.Expired(now) && !i.Exhausted()
}

// Submission is one participant's completed assessment. Immutable after
// creation; the derived payload is a cache recomputed from the answers.
type Submission struct {
	ID                   string    `json:"submission_id"`
	CaseID               string    `json:"case_id"`
	ParticipantEmail     string    `json:"participant_email"`
	QuestionnaireVersion string    `json:"questionnaire_version"`
	Lang                 string    `json:"lang"`
	AnswersJSON          string    `json:"-"`
	ProfileJSON          string    `json:"-"`
	DerivedJSON          string    `json:"-"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// InboxEntry marks a submission unread until an admin acknowledges it.
type InboxEntry struct {
	SubmissionID string    `json:"submission_id"`
	Seen         bool      `json:"seen"`
	SeenAt       time.Time `json:"seen_at,omitempty"`
	SeenBy       string    `json:"seen_by,omitempty"`
}

// Admin is a dashboard user.
type Admin struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}
