package api

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/strategize/legacy360/internal/services"
)

// memoryStore is the in-process Store used for tests and local runs.
// Its mutex is held across the invite check-and-increment plus the
// submission insert, which gives the same atomicity the sqlite store gets
// from its transaction.
type memoryStore struct {
	mu            sync.RWMutex
	cases         map[string]*services.Case
	invites       map[string]*services.Invite
	invitesByHash map[string]*services.Invite
	submissions   map[string]*services.Submission
	inbox         map[string]*services.InboxEntry
	adminsByEmail map[string]*services.Admin
	audit         []services.AuditEntry
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		cases:         map[string]*services.Case{},
		invites:       map[string]*services.Invite{},
		invitesByHash: map[string]*services.Invite{},
		submissions:   map[string]*services.Submission{},
		inbox:         map[string]*services.InboxEntry{},
		adminsByEmail: map[string]*services.Admin{},
	}
}

func (s *memoryStore) AddCase(c *services.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.cases[c.ID] = &cp
	return nil
}

func (s *memoryStore) GetCase(id string) (*services.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.cases[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *memoryStore) ListCases() ([]*services.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.Case, 0, len(s.cases))
	for _, c := range s.cases {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) AddInvite(inv *services.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.invites[inv.ID] = &cp
	s.invitesByHash[inv.TokenHash] = &cp
	return nil
}

func (s *memoryStore) GetInvite(id string) (*services.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv, ok := s.invites[id]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (s *memoryStore) GetInviteByTokenHash(hash string) (*services.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv, ok := s.invitesByHash[hash]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (s *memoryStore) ListInvitesByCase(caseID string) ([]*services.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.Invite{}
	for _, inv := range s.invites {
		if inv.CaseID == caseID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) UpdateInviteStatus(id string, status services.InviteStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invites[id]; ok {
		inv.Status = status
	}
	return nil
}

func (s *memoryStore) ConsumeInviteAndCreateSubmission(hash string, now time.Time, sub *services.Submission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitesByHash[hash]
	if !ok || !inv.Usable(now) {
		return false, nil
	}
	inv.UsesCount++
	if inv.UsesCount >= inv.MaxUses {
		inv.Status = services.InviteUsed
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return true, nil
}

func (s *memoryStore) GetSubmission(id string) (*services.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.submissions[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, nil
}

func (s *memoryStore) ListSubmissionsByCase(caseID string) ([]*services.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.Submission{}
	for _, sub := range s.submissions {
		if sub.CaseID == caseID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *memoryStore) ListSubmissionsSince(since time.Time) ([]*services.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.Submission{}
	for _, sub := range s.submissions {
		if !sub.SubmittedAt.Before(since) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (s *memoryStore) PutInboxEntry(e *services.InboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.inbox[e.SubmissionID]; ok && existing.Seen {
		return nil
	}
	cp := *e
	s.inbox[e.SubmissionID] = &cp
	return nil
}

func (s *memoryStore) ListInboxEntries() ([]*services.InboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.InboxEntry, 0, len(s.inbox))
	for _, e := range s.inbox {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) MarkInboxSeen(submissionID, by string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[submissionID]; !ok {
		return false, nil
	}
	s.inbox[submissionID] = &services.InboxEntry{SubmissionID: submissionID, Seen: true, SeenAt: at, SeenBy: by}
	return true, nil
}

func (s *memoryStore) FindAdminByEmail(email string) (*services.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.adminsByEmail[strings.ToLower(email)]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (s *memoryStore) AddAdmin(a *services.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.adminsByEmail[strings.ToLower(a.Email)] = &cp
	return nil
}

func (s *memoryStore) AddAudit(e services.AuditEntry) {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
}

func (s *memoryStore) ListAudit() []services.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]services.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}
