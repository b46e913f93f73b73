package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/strategize/legacy360/internal/middleware"
	"github.com/strategize/legacy360/internal/services"
)

// Router exposes the participant and admin HTTP surface.
type Router struct {
	store       Store
	catalog     *services.Catalog
	auth        *services.AuthService
	invites     *services.InviteService
	inbox       *services.InboxService
	aggregation *services.AggregationService
	inviteTTL   time.Duration
	baseURL     string
}

// Options tune router construction.
type Options struct {
	InviteTTL time.Duration
	BaseURL   string
}

func NewRouter(store Store, cat *services.Catalog, opts Options) *Router {
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = 14 * 24 * time.Hour
	}
	return &Router{
		store:       store,
		catalog:     cat,
		auth:        services.NewAuthService(store, middleware.SignToken),
		invites:     services.NewInviteService(store, cat),
		inbox:       services.NewInboxService(store),
		aggregation: services.NewAggregationService(store, cat),
		inviteTTL:   opts.InviteTTL,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", rt.handleRegister)        // POST
	mux.HandleFunc("/api/auth/login", rt.handleLogin)              // POST
	mux.HandleFunc("/api/questionnaire", rt.handleQuestionnaire)   // GET
	mux.HandleFunc("/api/invites/validate", rt.handleValidate)     // POST
	mux.HandleFunc("/api/submissions", rt.handleSubmit)            // POST
	mux.HandleFunc("/api/submissions/", rt.handleSubmissionScoped) // GET /api/submissions/{id}/report
	mux.HandleFunc("/api/cases", rt.handleCases)                   // GET, POST
	mux.HandleFunc("/api/cases/", rt.handleCaseScoped)             // GET /api/cases/{id}/...
	mux.HandleFunc("/api/invites", rt.handleInvites)               // GET, POST
	mux.HandleFunc("/api/invites/revoke", rt.handleRevoke)         // POST
	mux.HandleFunc("/api/inbox", rt.handleInbox)                   // GET
	mux.HandleFunc("/api/inbox/seen", rt.handleInboxSeen)          // POST
	mux.HandleFunc("/api/export", rt.handleExport)                 // GET
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch se.Code {
	case services.ErrorInvalid:
		status = http.StatusBadRequest
	case services.ErrorUnauthorized:
		status = http.StatusUnauthorized
	case services.ErrorForbidden, services.ErrorInviteInvalid:
		status = http.StatusForbidden
	case services.ErrorNotFound:
		status = http.StatusNotFound
	case services.ErrorConflict, services.ErrorVersionMismatch:
		status = http.StatusConflict
	case services.ErrorIncompleteSubmission:
		status = http.StatusUnprocessableEntity
	case services.ErrorStorage:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"error": se.Message, "code": se.Code})
}

// requireAdmin rejects the request unless the auth middleware attached
// valid claims. Returns the claims for auditing.
func (rt *Router) requireAdmin(w http.ResponseWriter, r *http.Request) (*middleware.Claims, bool) {
	if c, ok := middleware.AdminFromContext(r.Context()); ok {
		return c, true
	}
	writeError(w, services.NewUnauthorizedError("unauthorized"))
	return nil, false
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	res, err := rt.auth.Register(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": res.Token, "admin_id": res.AdminID})
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": res.Token, "admin_id": res.AdminID})
}

// GET /api/questionnaire?lang=xx — the wizard's question list.
func (rt *Router) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	lang := middleware.LocaleFromContext(r.Context())
	type outQuestion struct {
		ID        string `json:"id"`
		DomainKey string `json:"domain_key"`
		Text      string `json:"text"`
	}
	type outDomain struct {
		Key    string  `json:"key"`
		Name   string  `json:"name"`
		Weight float64 `json:"weight"`
	}
	domains := make([]outDomain, 0, len(rt.catalog.Domains))
	for _, d := range rt.catalog.Domains {
		name := d.NameI18n[lang]
		if name == "" {
			name = d.NameI18n["en"]
		}
		domains = append(domains, outDomain{Key: d.Key, Name: name, Weight: d.Weight})
	}
	questions := make([]outQuestion, 0, len(rt.catalog.Questions))
	for _, q := range rt.catalog.Questions {
		text := q.TextI18n[lang]
		if text == "" {
			text = q.TextI18n["en"]
		}
		questions = append(questions, outQuestion{ID: q.ID, DomainKey: q.DomainKey, Text: text})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":   rt.catalog.Version,
		"domains":   domains,
		"questions": questions,
	})
}

// POST /api/invites/validate — public; uniform shape for any bad token.
func (rt *Router) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	v, err := rt.invites.ValidateInvite(req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// POST /api/submissions — public, consumes the invite token.
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Token   string         `json:"token"`
		Version string         `json:"questionnaire_version"`
		Lang    string         `json:"lang"`
		Answers map[string]int `json:"answers"`
		Profile map[string]any `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	if req.Lang == "" {
		req.Lang = middleware.LocaleFromContext(r.Context())
	}
	if req.Version == "" {
		req.Version = rt.catalog.Version
	}
	id, err := rt.invites.SubmitAssessmentVersioned(req.Token, req.Version, req.Lang, req.Answers, req.Profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submission_id": id})
}

// GET /api/submissions/{id}/report — admin view of a participant report.
func (rt *Router) handleSubmissionScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/submissions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "report" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if _, ok := rt.requireAdmin(w, r); !ok {
		return
	}
	sub, err := rt.invites.GetSubmission(parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := services.BuildParticipantReport(sub, rt.catalog, r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET|POST /api/cases
func (rt *Router) handleCases(w http.ResponseWriter, r *http.Request) {
	if _, ok := rt.requireAdmin(w, r); !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		cases, err := rt.invites.ListCases()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
	case http.MethodPost:
		var req struct {
			CompanyName string `json:"company_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, services.NewInvalidError(err.Error()))
			return
		}
		c, err := rt.invites.CreateCase(req.CompanyName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/cases/{id}/submissions | /api/cases/{id}/aggregate
func (rt *Router) handleCaseScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/cases/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if _, ok := rt.requireAdmin(w, r); !ok {
		return
	}
	caseID := parts[0]
	switch parts[1] {
	case "submissions":
		subs, err := rt.invites.ListSubmissions(caseID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"case_id": caseID, "submissions": subs})
	case "aggregate":
		agg, err := rt.aggregation.AggregateCase(caseID)
		if err != nil {
			writeError(w, err)
			return
		}
		n := 3
		if v := r.URL.Query().Get("top"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				n = parsed
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"aggregate":       agg,
			"misaligned":      services.TopMisaligned(agg, rt.catalog, n),
			"lowest_maturity": services.LowestMaturity(agg, rt.catalog, n),
		})
	default:
		http.NotFound(w, r)
	}
}

// GET|POST /api/invites
func (rt *Router) handleInvites(w http.ResponseWriter, r *http.Request) {
	if _, ok := rt.requireAdmin(w, r); !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		caseID := r.URL.Query().Get("case_id")
		if caseID == "" {
			writeError(w, services.NewInvalidError("case_id required"))
			return
		}
		invs, err := rt.invites.ListInvites(caseID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invites": invs})
	case http.MethodPost:
		var req struct {
			CaseID           string `json:"case_id"`
			ParticipantEmail string `json:"participant_email"`
			TTLDays          int    `json:"ttl_days"`
			MaxUses          int    `json:"max_uses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, services.NewInvalidError(err.Error()))
			return
		}
		ttl := rt.inviteTTL
		if req.TTLDays > 0 {
			ttl = time.Duration(req.TTLDays) * 24 * time.Hour
		}
		created, err := rt.invites.CreateInvite(req.CaseID, req.ParticipantEmail, ttl, req.MaxUses)
		if err != nil {
			writeError(w, err)
			return
		}
		link := ""
		if rt.baseURL != "" {
			link = rt.baseURL + "/?token=" + created.RawToken
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"invite": created.Invite,
			"token":  created.RawToken,
			"link":   link,
		})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/invites/revoke
func (rt *Router) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := rt.requireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		InviteID string `json:"invite_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	if err := rt.invites.RevokeInvite(req.InviteID, claims.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /api/inbox?unread=1&days=7
func (rt *Router) handleInbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := rt.requireAdmin(w, r); !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "1"
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}
	items, err := rt.inbox.List(unreadOnly, days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// POST /api/inbox/seen
func (rt *Router) handleInboxSeen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := rt.requireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	if err := rt.inbox.MarkSeen(req.SubmissionID, claims.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /api/export?case_id=...&format=long|summary
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := rt.requireAdmin(w, r); !ok {
		return
	}
	caseID := r.URL.Query().Get("case_id")
	if caseID == "" {
		writeError(w, services.NewInvalidError("case_id required"))
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "long"
	}
	switch format {
	case "long":
		subs, err := rt.invites.ListSubmissions(caseID)
		if err != nil {
			writeError(w, err)
			return
		}
		b, err := services.ExportSubmissionsCSV(subs, rt.catalog)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=submissions.csv")
		_, _ = w.Write(b)
	case "summary":
		agg, err := rt.aggregation.AggregateCase(caseID)
		if err != nil {
			writeError(w, err)
			return
		}
		b, err := services.ExportCaseSummaryCSV(agg, rt.catalog)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=summary.csv")
		_, _ = w.Write(b)
	default:
		writeError(w, services.NewInvalidError("unsupported format"))
	}
}
