package server

import (
	"crypto/tls"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/serisow/studypack/config"
	"github.com/serisow/studypack/handlers"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"
)

func SetupRoutes(h *handlers.StudyPackHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/studypack/generate", h.Generate).Methods("POST")
	r.HandleFunc("/studypack/{id}/status", h.Status).Methods("GET")
	r.HandleFunc("/studypack/{id}/notes.pdf", h.NotesPDF).Methods("GET")
	r.HandleFunc("/studypack/{id}/mindmap.png", h.MindMapPNG).Methods("GET")
	r.HandleFunc("/studypack/{id}/mindmap/preview", h.MindMapPreview).Methods("GET")

	return r
}

// ServeProduction build the server when we operate in a production environment.
func ServeProduction(n *negroni.Negroni, cfg config.Config) {
	// Configure autocert settings
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Listen for HTTP requests on port 80 in a new goroutine. Use
	// autocertManager.HTTPHandler(nil) as the handler. This will send ACME
	// "http-01" challenge responses as necessary, and 302 redirect all other
	// requests to HTTPS.
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

	// Configure the TLS config to use the autocertManager.GetCertificate function.
	tlsConfig := &tls.Config{
		GetCertificate:           autocertManager.GetCertificate,
		PreferServerCipherSuites: true,
		CurvePreferences:         []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	// Generation requests block on model calls, so write timeouts have to
	// cover the full notes timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.NotesTimeout + time.Minute,
	}

	err := srv.ListenAndServeTLS("", "") // Key and cert provided automatically by autocert.
	log.Fatal(err)
}

// ServeDevelopment start the server when we operate in a dev environment.
func ServeDevelopment(s *http.Server) {
	log.Fatal(s.ListenAndServe())
}
