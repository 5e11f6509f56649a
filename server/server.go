package server

import (
	"crypto/tls"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/metrodoc/config"
	"github.com/serisow/metrodoc/handlers"
)

func SetupRoutes(documents *handlers.DocumentHandler, search *handlers.SearchHandler, stats *handlers.StatsHandler) *mux.Router {
	r := mux.NewRouter()

	// Search goes first so the router never treats "search" as an {id}.
	r.Handle("/documents/search", search).Methods("POST")

	r.HandleFunc("/documents", documents.Upload).Methods("POST")
	r.HandleFunc("/documents", documents.List).Methods("GET")
	r.HandleFunc("/documents/{id}", documents.Get).Methods("GET")
	r.HandleFunc("/documents/{id}/chunks", documents.GetChunks).Methods("GET")
	r.HandleFunc("/documents/{id}/tasks", documents.GetTasks).Methods("GET")
	r.HandleFunc("/documents/{id}/summary", documents.GetSummary).Methods("GET")
	r.HandleFunc("/documents/{id}/status", documents.Status).Methods("GET")
	r.HandleFunc("/documents/{id}/reprocess", documents.Reprocess).Methods("POST")

	r.Handle("/stats", stats).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	}).Methods("GET")

	return r
}

// ServeProduction builds the server when we operate in a production environment.
func ServeProduction(n *negroni.Negroni, cfg config.Config) {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Port 80 only answers ACME "http-01" challenges and redirects the rest
	// to HTTPS.
	go func() {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      autocertManager.HTTPHandler(nil),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		err := srv.ListenAndServe()
		log.Fatal(err)
	}()

	tlsConfig := &tls.Config{
		GetCertificate:           autocertManager.GetCertificate,
		PreferServerCipherSuites: true,
		CurvePreferences:         []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	err := srv.ListenAndServeTLS("", "") // Key and cert provided automatically by autocert.
	log.Fatal(err)
}

// ServeDevelopment starts the server when we operate in a dev environment.
func ServeDevelopment(s *http.Server) {
	log.Fatal(s.ListenAndServe())
}
