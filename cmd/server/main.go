package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strategize/legacy360/internal/api"
	"github.com/strategize/legacy360/internal/config"
	"github.com/strategize/legacy360/internal/db"
	"github.com/strategize/legacy360/internal/middleware"
	"github.com/strategize/legacy360/internal/services"
	"github.com/strategize/legacy360/internal/utils"
)

var version = "dev"

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Printf("server: LEGACY360_JWT_SECRET not set, using development secret")
	}

	catalog := services.DefaultCatalog()
	if err := catalog.Validate(); err != nil {
		log.Fatalf("server: invalid questionnaire catalog: %v", err)
	}

	store, closeDB, err := openStore(cfg)
	if err != nil {
		log.Fatalf("server: open store: %v", err)
	}
	defer closeDB()

	router := api.NewRouter(store, catalog, api.Options{
		InviteTTL: cfg.InviteTTL,
		BaseURL:   cfg.BaseURL,
	})

	mux := http.NewServeMux()
	router.Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		locale := middleware.LocaleFromContext(r.Context())
		writeJSON(w, map[string]string{"status": utils.T(locale, "health.ok")})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"version":       version,
			"questionnaire": services.QuestionnaireVersion,
		})
	})

	handler := middleware.SecureHeaders(
		middleware.NoStore(
			middleware.CORS(
				middleware.LocaleMiddleware(
					middleware.WithAuth(mux)))))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	log.Printf("server: listening on %s (questionnaire %s)", cfg.Addr, services.QuestionnaireVersion)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}

// openStore opens the sqlite-backed store, or falls back to the
// in-memory store when no database path is configured.
func openStore(cfg *config.Config) (api.Store, func(), error) {
	if cfg.DBPath == "" {
		log.Printf("server: no database path configured, using in-memory store")
		return api.NewMemoryStore(), func() {}, nil
	}
	sqlDB, err := sql.Open("sqlite3", "file:"+cfg.DBPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(sqlDB, utils.SafeEnv("LEGACY360_MIGRATIONS_DIR", "")); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	store, err := db.NewStore(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	log.Printf("server: sqlite store ready at %s", cfg.DBPath)
	return store, func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("server: close db: %v", err)
		}
	}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
