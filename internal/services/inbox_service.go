package services

import (
	"strings"
	"time"
)

// InboxStore is the persistence surface of the admin inbox.
type InboxStore interface {
	ListInboxEntries() ([]*InboxEntry, error)
	MarkInboxSeen(submissionID, by string, at time.Time) (bool, error)
	ListSubmissionsSince(since time.Time) ([]*Submission, error)
	AddAudit(entry AuditEntry)
}

// InboxService surfaces new submissions to administrators. Entries are
// written best-effort at submission time, so listing joins against the
// submissions themselves and treats a missing entry as unread.
type InboxService struct {
	store InboxStore
	now   func() time.Time
}

func NewInboxService(store InboxStore) *InboxService {
	return &InboxService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// InboxItem is one row of the admin inbox view.
type InboxItem struct {
	Submission *Submission `json:"submission"`
	Seen       bool        `json:"seen"`
	SeenAt     time.Time   `json:"seen_at,omitempty"`
	SeenBy     string      `json:"seen_by,omitempty"`
}

// List returns recent submissions newest first, each flagged with its read
// state. unreadOnly filters acknowledged rows out; days bounds the window
// (default 7).
func (s *InboxService) List(unreadOnly bool, days int) ([]*InboxItem, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	subs, err := s.store.ListSubmissionsSince(since)
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	entries, err := s.store.ListInboxEntries()
	if err != nil {
		return nil, NewStorageError(err.Error())
	}
	byID := make(map[string]*InboxEntry, len(entries))
	for _, e := range entries {
		byID[e.SubmissionID] = e
	}
	out := make([]*InboxItem, 0, len(subs))
	for _, sub := range subs {
		item := &InboxItem{Submission: sub}
		if e := byID[sub.ID]; e != nil {
			item.Seen = e.Seen
			item.SeenAt = e.SeenAt
			item.SeenBy = e.SeenBy
		}
		if unreadOnly && item.Seen {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// MarkSeen acknowledges a submission on behalf of an administrator.
func (s *InboxService) MarkSeen(submissionID, by string) error {
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return NewInvalidError("submission_id required")
	}
	if strings.TrimSpace(by) == "" {
		by = "admin"
	}
	now := s.now()
	ok, err := s.store.MarkInboxSeen(submissionID, by, now)
	if err != nil {
		return NewStorageError(err.Error())
	}
	if !ok {
		return NewNotFoundError("submission not found")
	}
	s.store.AddAudit(AuditEntry{Time: now, Actor: by, Action: "inbox_seen", Target: submissionID})
	return nil
}
