package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/corvidlabs/querycore/orchestrator"
	"github.com/corvidlabs/querycore/store/postgres"
)

// server wires the HTTP surface onto an Orchestrator: streaming ask,
// feedback, health and metrics, behind CORS and bearer-token auth.
type server struct {
	router *mux.Router
	auth   *authenticator
}

func newServer(orch *orchestrator.Orchestrator, pgStore *postgres.Store, jwtSecret []byte) *server {
	s := &server{router: mux.NewRouter(), auth: newAuthenticator(jwtSecret)}

	api := &apiHandler{orch: orch, store: pgStore}

	s.router.HandleFunc("/healthz", healthHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/ask", s.auth.require(api.ask)).Methods("POST")
	s.router.HandleFunc("/feedback", s.auth.require(api.feedback)).Methods("POST")

	return s
}

func (s *server) ListenAndServe(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)
	return http.ListenAndServe(addr, handler)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}
