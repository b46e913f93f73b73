package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/strategize/legacy360/internal/middleware"
	"github.com/strategize/legacy360/internal/services"
)

func newTestServer(t *testing.T) (*httptest.Server, Store) {
	t.Helper()
	store := NewMemoryStore()
	router := NewRouter(store, services.DefaultCatalog(), Options{BaseURL: "http://app.local"})
	mux := http.NewServeMux()
	router.Register(mux)
	srv := httptest.NewServer(middleware.LocaleMiddleware(middleware.WithAuth(mux)))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func registerAdmin(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var res struct {
		Token string `json:"token"`
	}
	code := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "",
		map[string]string{"email": "admin@example.com", "password": "pw123456"}, &res)
	if code != http.StatusOK || res.Token == "" {
		t.Fatalf("register: code=%d token=%q", code, res.Token)
	}
	return res.Token
}

func fullAnswers(v int) map[string]int {
	out := map[string]int{}
	for _, id := range services.DefaultCatalog().QuestionIDs() {
		out[id] = v
	}
	return out
}

func TestQuestionnaireEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	var res struct {
		Version   string `json:"version"`
		Domains   []struct{ Key, Name string }
		Questions []struct{ ID, Text string }
	}
	code := doJSON(t, http.MethodGet, srv.URL+"/api/questionnaire?lang=el", "", nil, &res)
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if res.Version != services.QuestionnaireVersion {
		t.Errorf("version = %q", res.Version)
	}
	if len(res.Domains) != 6 || len(res.Questions) != 18 {
		t.Errorf("domains=%d questions=%d", len(res.Domains), len(res.Questions))
	}
	if res.Domains[0].Name != "Εταιρική Διακυβέρνηση" {
		t.Errorf("lang=el should localize names, got %q", res.Domains[0].Name)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/cases", "/api/invites?case_id=x", "/api/inbox", "/api/export?case_id=x"} {
		code := doJSON(t, http.MethodGet, srv.URL+path, "", nil, nil)
		if code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: code = %d, want 401", path, code)
		}
	}
}

func TestValidateUnknownToken(t *testing.T) {
	srv, _ := newTestServer(t)
	var res map[string]any
	code := doJSON(t, http.MethodPost, srv.URL+"/api/invites/validate", "",
		map[string]string{"token": "never-issued"}, &res)
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if res["valid"] != false {
		t.Errorf("res = %v, want valid=false", res)
	}
	if _, leaked := res["case_id"]; leaked {
		t.Error("invalid validation must not leak a case id")
	}
}

func TestParticipantFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerAdmin(t, srv)

	var created struct {
		ID string `json:"id"`
	}
	code := doJSON(t, http.MethodPost, srv.URL+"/api/cases", token,
		map[string]string{"company_name": "Papadopoulos Bros SA"}, &created)
	if code != http.StatusOK || created.ID == "" {
		t.Fatalf("create case: code=%d id=%q", code, created.ID)
	}

	var invite struct {
		Token string `json:"token"`
		Link  string `json:"link"`
		Invite struct {
			ID string `json:"id"`
		} `json:"invite"`
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/api/invites", token,
		map[string]any{"case_id": created.ID, "participant_email": "maria@example.com"}, &invite)
	if code != http.StatusOK || invite.Token == "" {
		t.Fatalf("create invite: code=%d", code)
	}
	if !strings.HasPrefix(invite.Link, "http://app.local/?token=") {
		t.Errorf("link = %q", invite.Link)
	}

	var validation struct {
		Valid  bool   `json:"valid"`
		CaseID string `json:"case_id"`
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/api/invites/validate", "",
		map[string]string{"token": invite.Token}, &validation)
	if code != http.StatusOK || !validation.Valid || validation.CaseID != created.ID {
		t.Fatalf("validate: code=%d res=%+v", code, validation)
	}

	var submitted struct {
		SubmissionID string `json:"submission_id"`
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/api/submissions", "",
		map[string]any{"token": invite.Token, "lang": "en", "answers": fullAnswers(4)}, &submitted)
	if code != http.StatusOK || submitted.SubmissionID == "" {
		t.Fatalf("submit: code=%d res=%+v", code, submitted)
	}

	// The consumed token now validates read-only and cannot submit again.
	var again struct {
		Valid    bool `json:"valid"`
		ReadOnly bool `json:"read_only"`
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/api/invites/validate", "",
		map[string]string{"token": invite.Token}, &again)
	if code != http.StatusOK || !again.Valid || !again.ReadOnly {
		t.Fatalf("revalidate: code=%d res=%+v", code, again)
	}
	var dupErr struct {
		Code string `json:"code"`
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/api/submissions", "",
		map[string]any{"token": invite.Token, "answers": fullAnswers(4)}, &dupErr)
	if code != http.StatusForbidden || dupErr.Code != "invite_invalid" {
		t.Fatalf("duplicate submit: code=%d res=%+v", code, dupErr)
	}

	var report struct {
		SubmissionID string `json:"submission_id"`
		Overall      struct {
			Value   float64 `json:"value"`
			Defined bool    `json:"defined"`
		} `json:"overall"`
		Discussion []struct {
			DomainKey string `json:"domain_key"`
		} `json:"discussion"`
	}
	code = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/submissions/%s/report", srv.URL, submitted.SubmissionID), token, nil, &report)
	if code != http.StatusOK || report.SubmissionID != submitted.SubmissionID {
		t.Fatalf("report: code=%d res=%+v", code, report)
	}
	if !report.Overall.Defined || math.Abs(report.Overall.Value-75.0) > 1e-9 {
		t.Errorf("overall = %+v, want 75.0", report.Overall)
	}

	var agg struct {
		Aggregate struct {
			Participants int `json:"participants"`
		} `json:"aggregate"`
	}
	code = doJSON(t, http.MethodGet, srv.URL+"/api/cases/"+created.ID+"/aggregate", token, nil, &agg)
	if code != http.StatusOK || agg.Aggregate.Participants != 1 {
		t.Fatalf("aggregate: code=%d res=%+v", code, agg)
	}

	var inbox struct {
		Items []struct {
			Seen bool `json:"seen"`
		} `json:"items"`
	}
	code = doJSON(t, http.MethodGet, srv.URL+"/api/inbox?unread=1", token, nil, &inbox)
	if code != http.StatusOK || len(inbox.Items) != 1 || inbox.Items[0].Seen {
		t.Fatalf("inbox: code=%d res=%+v", code, inbox)
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/api/inbox/seen", token,
		map[string]string{"submission_id": submitted.SubmissionID}, nil)
	if code != http.StatusOK {
		t.Fatalf("mark seen: code=%d", code)
	}
	code = doJSON(t, http.MethodGet, srv.URL+"/api/inbox?unread=1", token, nil, &inbox)
	if code != http.StatusOK || len(inbox.Items) != 0 {
		t.Fatalf("inbox after ack: code=%d res=%+v", code, inbox)
	}
}

func TestSubmitVersionMismatch(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerAdmin(t, srv)

	var created struct {
		ID string `json:"id"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/cases", token,
		map[string]string{"company_name": "Versioned Co"}, &created)
	var invite struct {
		Token string `json:"token"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/invites", token,
		map[string]any{"case_id": created.ID, "participant_email": "p@example.com"}, &invite)

	var errRes struct {
		Code string `json:"code"`
	}
	code := doJSON(t, http.MethodPost, srv.URL+"/api/submissions", "",
		map[string]any{"token": invite.Token, "questionnaire_version": "v0", "answers": fullAnswers(3)}, &errRes)
	if code != http.StatusConflict || errRes.Code != "version_mismatch" {
		t.Fatalf("stale version: code=%d res=%+v", code, errRes)
	}
}

func TestSubmitIncompleteAnswers(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerAdmin(t, srv)

	var created struct {
		ID string `json:"id"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/cases", token,
		map[string]string{"company_name": "Partial Co"}, &created)
	var invite struct {
		Token string `json:"token"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/invites", token,
		map[string]any{"case_id": created.ID, "participant_email": "p@example.com"}, &invite)

	answers := fullAnswers(3)
	delete(answers, "4.2")
	var errRes struct {
		Code string `json:"code"`
	}
	code := doJSON(t, http.MethodPost, srv.URL+"/api/submissions", "",
		map[string]any{"token": invite.Token, "answers": answers}, &errRes)
	if code != http.StatusUnprocessableEntity || errRes.Code != "incomplete_submission" {
		t.Fatalf("partial answers: code=%d res=%+v", code, errRes)
	}
}

func TestRevokeInviteEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerAdmin(t, srv)

	var created struct {
		ID string `json:"id"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/cases", token,
		map[string]string{"company_name": "Revoked Co"}, &created)
	var invite struct {
		Token  string `json:"token"`
		Invite struct {
			ID string `json:"id"`
		} `json:"invite"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/invites", token,
		map[string]any{"case_id": created.ID, "participant_email": "p@example.com"}, &invite)

	code := doJSON(t, http.MethodPost, srv.URL+"/api/invites/revoke", token,
		map[string]string{"invite_id": invite.Invite.ID}, nil)
	if code != http.StatusOK {
		t.Fatalf("revoke: code=%d", code)
	}

	var validation map[string]any
	doJSON(t, http.MethodPost, srv.URL+"/api/invites/validate", "",
		map[string]string{"token": invite.Token}, &validation)
	if validation["valid"] != false {
		t.Errorf("revoked token validation = %v, want valid=false", validation)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerAdmin(t, srv)

	var created struct {
		ID string `json:"id"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/cases", token,
		map[string]string{"company_name": "Export Co"}, &created)
	var invite struct {
		Token string `json:"token"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/invites", token,
		map[string]any{"case_id": created.ID, "participant_email": "p@example.com"}, &invite)
	doJSON(t, http.MethodPost, srv.URL+"/api/submissions", "",
		map[string]any{"token": invite.Token, "answers": fullAnswers(5)}, nil)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/export?case_id="+created.ID+"&format=summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}

	code := doJSON(t, http.MethodGet, srv.URL+"/api/export?case_id="+created.ID+"&format=nope", token, nil, nil)
	if code != http.StatusBadRequest {
		t.Errorf("bad format: code=%d, want 400", code)
	}
}
