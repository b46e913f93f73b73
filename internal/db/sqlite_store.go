package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/strategize/legacy360/internal/api"
	"github.com/strategize/legacy360/internal/services"
)

// timeLayout is RFC3339 in UTC with no fractional seconds, so stored
// timestamps compare correctly as strings inside SQL.
const timeLayout = time.RFC3339

// SQLiteStore persists the assessment data in a single sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// NewStore returns the sqlite-backed api.Store.
func NewStore(db *sql.DB) (api.Store, error) {
	return NewSQLiteStore(db)
}

var _ api.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		log.Printf("sqlite store: %s: %v", prefix, err)
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	return time.Time{}
}

func toNullString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// --- Cases ---

func (s *SQLiteStore) AddCase(c *services.Case) error {
	_, err := s.db.Exec(`INSERT INTO cases (id, company_name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.CompanyName, formatTime(c.CreatedAt))
	return err
}

func (s *SQLiteStore) GetCase(id string) (*services.Case, error) {
	row := s.db.QueryRow(`SELECT id, company_name, created_at FROM cases WHERE id = ?`, id)
	var c services.Case
	var created string
	if err := row.Scan(&c.ID, &c.CompanyName, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.CreatedAt = parseTime(created)
	return &c, nil
}

func (s *SQLiteStore) ListCases() ([]*services.Case, error) {
	rows, err := s.db.Query(`SELECT id, company_name, created_at FROM cases ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer s.closeRows("ListCases", rows)
	out := []*services.Case{}
	for rows.Next() {
		var c services.Case
		var created string
		if err := rows.Scan(&c.ID, &c.CompanyName, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(created)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) closeRows(prefix string, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logErr(prefix+": rows.Close", err)
	}
}

// --- Invites ---

func (s *SQLiteStore) AddInvite(inv *services.Invite) error {
	_, err := s.db.Exec(`INSERT INTO invites
	  (id, case_id, participant_email, token_hash, token_expires_at, max_uses, uses_count, status, created_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CaseID, inv.ParticipantEmail, inv.TokenHash, formatTime(inv.TokenExpiresAt),
		inv.MaxUses, inv.UsesCount, string(inv.Status), formatTime(inv.CreatedAt))
	return err
}

const inviteColumns = `id, case_id, participant_email, token_hash, token_expires_at, max_uses, uses_count, status, created_at`

func scanInvite(row interface{ Scan(...any) error }) (*services.Invite, error) {
	var inv services.Invite
	var status, expires, created string
	if err := row.Scan(&inv.ID, &inv.CaseID, &inv.ParticipantEmail, &inv.TokenHash,
		&expires, &inv.MaxUses, &inv.UsesCount, &status, &created); err != nil {
		return nil, err
	}
	inv.Status = services.InviteStatus(status)
	inv.TokenExpiresAt = parseTime(expires)
	inv.CreatedAt = parseTime(created)
	return &inv, nil
}

func (s *SQLiteStore) GetInvite(id string) (*services.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteColumns+` FROM invites WHERE id = ?`, id)
	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

func (s *SQLiteStore) GetInviteByTokenHash(hash string) (*services.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteColumns+` FROM invites WHERE token_hash = ?`, hash)
	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

func (s *SQLiteStore) ListInvitesByCase(caseID string) ([]*services.Invite, error) {
	rows, err := s.db.Query(`SELECT `+inviteColumns+` FROM invites WHERE case_id = ? ORDER BY created_at DESC`, caseID)
	if err != nil {
		return nil, err
	}
	defer s.closeRows("ListInvitesByCase", rows)
	out := []*services.Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateInviteStatus(id string, status services.InviteStatus) error {
	_, err := s.db.Exec(`UPDATE invites SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// ConsumeInviteAndCreateSubmission increments the invite's use count and
// inserts the submission inside one transaction. The UPDATE carries the
// usability conditions, so only one of any number of concurrent submits
// can pass the rows-affected check; the rest roll back and report false.
func (s *SQLiteStore) ConsumeInviteAndCreateSubmission(hash string, now time.Time, sub *services.Submission) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logErr("ConsumeInviteAndCreateSubmission: rollback", err)
		}
	}()

	res, err := tx.Exec(`UPDATE invites SET
	      uses_count = uses_count + 1,
	      status = CASE WHEN uses_count + 1 >= max_uses THEN 'USED' ELSE status END
	    WHERE token_hash = ?
	      AND status = 'ACTIVE'
	      AND uses_count < max_uses
	      AND token_expires_at > ?`,
		hash, formatTime(now))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected != 1 {
		return false, nil
	}

	if _, err := tx.Exec(`INSERT INTO submissions
	      (id, case_id, participant_email, questionnaire_version, lang, answers_json, profile_json, derived_json, submitted_at)
	      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.CaseID, sub.ParticipantEmail, sub.QuestionnaireVersion, toNullString(sub.Lang),
		sub.AnswersJSON, toNullString(sub.ProfileJSON), toNullString(sub.DerivedJSON),
		formatTime(sub.SubmittedAt)); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// --- Submissions ---

const submissionColumns = `id, case_id, participant_email, questionnaire_version, lang, answers_json, profile_json, derived_json, submitted_at`

func scanSubmission(row interface{ Scan(...any) error }) (*services.Submission, error) {
	var sub services.Submission
	var lang, profile, derived sql.NullString
	var submitted string
	if err := row.Scan(&sub.ID, &sub.CaseID, &sub.ParticipantEmail, &sub.QuestionnaireVersion,
		&lang, &sub.AnswersJSON, &profile, &derived, &submitted); err != nil {
		return nil, err
	}
	sub.Lang = lang.String
	sub.ProfileJSON = profile.String
	sub.DerivedJSON = derived.String
	sub.SubmittedAt = parseTime(submitted)
	return &sub, nil
}

func (s *SQLiteStore) GetSubmission(id string) (*services.Submission, error) {
	row := s.db.QueryRow(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (s *SQLiteStore) listSubmissions(prefix, query string, args ...any) ([]*services.Submission, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(prefix, rows)
	out := []*services.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSubmissionsByCase(caseID string) ([]*services.Submission, error) {
	return s.listSubmissions("ListSubmissionsByCase",
		`SELECT `+submissionColumns+` FROM submissions WHERE case_id = ? ORDER BY submitted_at ASC`, caseID)
}

func (s *SQLiteStore) ListSubmissionsSince(since time.Time) ([]*services.Submission, error) {
	return s.listSubmissions("ListSubmissionsSince",
		`SELECT `+submissionColumns+` FROM submissions WHERE submitted_at >= ? ORDER BY submitted_at DESC`,
		formatTime(since))
}

// --- Admin inbox ---

func (s *SQLiteStore) PutInboxEntry(e *services.InboxEntry) error {
	_, err := s.db.Exec(`INSERT INTO admin_inbox (submission_id, seen) VALUES (?, 0)
	    ON CONFLICT(submission_id) DO NOTHING`, e.SubmissionID)
	return err
}

func (s *SQLiteStore) ListInboxEntries() ([]*services.InboxEntry, error) {
	rows, err := s.db.Query(`SELECT submission_id, seen, seen_at, seen_by FROM admin_inbox`)
	if err != nil {
		return nil, err
	}
	defer s.closeRows("ListInboxEntries", rows)
	out := []*services.InboxEntry{}
	for rows.Next() {
		var e services.InboxEntry
		var seen int64
		var seenAt, seenBy sql.NullString
		if err := rows.Scan(&e.SubmissionID, &seen, &seenAt, &seenBy); err != nil {
			return nil, err
		}
		e.Seen = seen != 0
		if seenAt.Valid {
			e.SeenAt = parseTime(seenAt.String)
		}
		e.SeenBy = seenBy.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkInboxSeen(submissionID, by string, at time.Time) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM submissions WHERE id = ?`, submissionID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}
	_, err = s.db.Exec(`INSERT INTO admin_inbox (submission_id, seen, seen_at, seen_by) VALUES (?, 1, ?, ?)
	    ON CONFLICT(submission_id) DO UPDATE SET seen = 1, seen_at = excluded.seen_at, seen_by = excluded.seen_by`,
		submissionID, formatTime(at), by)
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- Admins ---

func (s *SQLiteStore) FindAdminByEmail(email string) (*services.Admin, error) {
	row := s.db.QueryRow(`SELECT id, email, pass_hash, created_at FROM admins WHERE email = ?`, email)
	var a services.Admin
	var created string
	if err := row.Scan(&a.ID, &a.Email, &a.PassHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.CreatedAt = parseTime(created)
	return &a, nil
}

func (s *SQLiteStore) AddAdmin(a *services.Admin) error {
	_, err := s.db.Exec(`INSERT INTO admins (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Email, a.PassHash, formatTime(a.CreatedAt))
	return err
}

// --- Audit ---

func (s *SQLiteStore) AddAudit(e services.AuditEntry) {
	_, err := s.db.Exec(`INSERT INTO audit_log (ts, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		formatTime(e.Time), e.Actor, e.Action, e.Target, toNullString(e.Note))
	s.logErr("AddAudit", err)
}

func (s *SQLiteStore) ListAudit() []services.AuditEntry {
	rows, err := s.db.Query(`SELECT ts, actor, action, target, note FROM audit_log ORDER BY ts ASC`)
	if err != nil {
		s.logErr("ListAudit: query", err)
		return nil
	}
	defer s.closeRows("ListAudit", rows)
	out := []services.AuditEntry{}
	for rows.Next() {
		var e services.AuditEntry
		var ts string
		var note sql.NullString
		if err := rows.Scan(&ts, &e.Actor, &e.Action, &e.Target, &note); err != nil {
			s.logErr("ListAudit: scan", err)
			continue
		}
		e.Time = parseTime(ts)
		e.Note = note.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		s.logErr("ListAudit: rows.Err", err)
	}
	return out
}
