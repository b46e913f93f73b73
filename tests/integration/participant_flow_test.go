//go:build integration

package integration

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strategize/legacy360/internal/api"
	"github.com/strategize/legacy360/internal/db"
	"github.com/strategize/legacy360/internal/services"
)

func openTestStore(t *testing.T) api.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy360_test.db")
	sqlDB, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.RunMigrations(sqlDB, ""); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	store, err := db.NewStore(sqlDB)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func fullAnswers(cat *services.Catalog, v int) map[string]int {
	out := map[string]int{}
	for _, q := range cat.Questions {
		out[q.ID] = v
	}
	return out
}

func TestParticipantFlowSQLite(t *testing.T) {
	store := openTestStore(t)
	cat := services.DefaultCatalog()
	svc := services.NewInviteService(store, cat)

	c, err := svc.CreateCase("Integration Co")
	if err != nil {
		t.Fatal(err)
	}
	created, err := svc.CreateInvite(c.ID, "maria@example.com", time.Hour, 1)
	if err != nil {
		t.Fatal(err)
	}

	v, err := svc.ValidateInvite(created.RawToken)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Valid || v.CaseID != c.ID {
		t.Fatalf("validate = %+v", v)
	}

	id, err := svc.SubmitAssessment(created.RawToken, "el", fullAnswers(cat, 4), map[string]any{"role": "owner"})
	if err != nil {
		t.Fatal(err)
	}

	sub, err := store.GetSubmission(id)
	if err != nil || sub == nil {
		t.Fatalf("reload submission: %v %v", sub, err)
	}
	if sub.CaseID != c.ID || sub.Lang != "el" {
		t.Errorf("submission = %+v", sub)
	}
	derived, err := services.ParseDerived(sub.DerivedJSON)
	if err != nil {
		t.Fatalf("derived round trip: %v", err)
	}
	if derived.Overall == nil {
		t.Error("overall should survive persistence")
	}

	inv, err := store.GetInvite(created.Invite.ID)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != services.InviteUsed || inv.UsesCount != 1 {
		t.Errorf("invite after submit = %+v", inv)
	}

	v, err = svc.ValidateInvite(created.RawToken)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Valid || !v.ReadOnly {
		t.Errorf("used token validation = %+v, want read-only", v)
	}

	if _, err := svc.SubmitAssessment(created.RawToken, "el", fullAnswers(cat, 4), nil); err == nil {
		t.Fatal("second submit on a used invite must fail")
	}

	agg := services.AggregateSubmissions(c.ID, mustList(t, store, c.ID), cat)
	if agg.Participants != 1 || agg.Skipped != 0 {
		t.Errorf("aggregate = %+v", agg)
	}
}

func mustList(t *testing.T, store services.InviteStore, caseID string) []*services.Submission {
	t.Helper()
	subs, err := store.ListSubmissionsByCase(caseID)
	if err != nil {
		t.Fatal(err)
	}
	return subs
}

func TestConcurrentConsumeSQLite(t *testing.T) {
	store := openTestStore(t)
	cat := services.DefaultCatalog()
	svc := services.NewInviteService(store, cat)

	c, err := svc.CreateCase("Race Co")
	if err != nil {
		t.Fatal(err)
	}
	created, err := svc.CreateInvite(c.ID, "p@example.com", time.Hour, 1)
	if err != nil {
		t.Fatal(err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	answers := fullAnswers(cat, 3)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitAssessment(created.RawToken, "en", answers, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	subs := mustList(t, store, c.ID)
	if len(subs) != 1 {
		t.Fatalf("stored submissions = %d, want 1", len(subs))
	}
}

func TestExpiredInviteSQLite(t *testing.T) {
	store := openTestStore(t)
	cat := services.DefaultCatalog()
	svc := services.NewInviteService(store, cat)

	c, err := svc.CreateCase("Expired Co")
	if err != nil {
		t.Fatal(err)
	}
	created, err := svc.CreateInvite(c.ID, "late@example.com", time.Second, 1)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond)

	v, err := svc.ValidateInvite(created.RawToken)
	if err != nil {
		t.Fatal(err)
	}
	if v.Valid {
		t.Errorf("expired token validation = %+v, want invalid", v)
	}
	if _, err := svc.SubmitAssessment(created.RawToken, "en", fullAnswers(cat, 3), nil); err == nil {
		t.Fatal("expired invite must not accept a submission")
	}
}

func mustNoErr(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

func TestAdminFlowSQLite(t *testing.T) {
	store := openTestStore(t)

	auth := services.NewAuthService(store, func(uid, email string, ttl time.Duration) (string, error) {
		return fmt.Sprintf("tok-%s", uid), nil
	})
	if _, err := auth.Register("admin@example.com", "pw123456"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := auth.Login("admin@example.com", "pw123456"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := auth.Register("admin@example.com", "other"); err == nil {
		t.Fatal("duplicate register must conflict")
	}

	cat := services.DefaultCatalog()
	invites := services.NewInviteService(store, cat)
	c, err := invites.CreateCase("Inbox Co")
	mustNoErr(t, err, "create case")
	created, err := invites.CreateInvite(c.ID, "p@example.com", time.Hour, 1)
	mustNoErr(t, err, "create invite")
	subID, err := invites.SubmitAssessment(created.RawToken, "en", fullAnswers(cat, 2), nil)
	mustNoErr(t, err, "submit")

	inbox := services.NewInboxService(store)
	items, err := inbox.List(true, 7)
	mustNoErr(t, err, "list inbox")
	if len(items) != 1 || items[0].Submission.ID != subID {
		t.Fatalf("inbox items = %+v", items)
	}
	mustNoErr(t, inbox.MarkSeen(subID, "admin@example.com"), "mark seen")
	items, err = inbox.List(true, 7)
	mustNoErr(t, err, "list inbox again")
	if len(items) != 0 {
		t.Fatalf("unread after ack = %+v", items)
	}
}
