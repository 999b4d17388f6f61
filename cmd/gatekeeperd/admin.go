package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgepolicy/gatekeeper/authz"
	"github.com/forgepolicy/gatekeeper/gatekeeper"
)

// adminRouter builds the administrative HTTP surface: manual tier override
// and emergency-mode activation, both gated on an authz bearer scope. This
// is the one piece of the forge-facing REST surface the core itself owns;
// the rest (webhook ingestion) is forge-integration glue, out of scope per
// spec.md §1.
func adminRouter(svc *gatekeeper.Service, verifier *authz.Verifier) http.Handler {
	r := chi.NewRouter()

	r.Post("/change-requests/{repository}/{number}/emergency-mode", func(w http.ResponseWriter, req *http.Request) {
		principal, err := verifier.RequireScope(req, authz.ScopeEmergencyMode)
		if err != nil {
			writeAuthzError(w, err)
			return
		}
		repository, number, ok := pathChangeRequest(w, req)
		if !ok {
			return
		}
		var body struct {
			Rationale string `json:"rationale"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		verdict, outcome, err := svc.ActivateEmergencyMode(req.Context(), principal, repository, number, body.Rationale, time.Now().UTC())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, struct {
			Verdict interface{} `json:"verdict"`
			Outcome interface{} `json:"outcome"`
		}{verdict, outcome})
	})

	r.Post("/change-requests/{repository}/{number}/tier", func(w http.ResponseWriter, req *http.Request) {
		principal, err := verifier.RequireScope(req, authz.ScopeOverrideTier)
		if err != nil {
			writeAuthzError(w, err)
			return
		}
		repository, number, ok := pathChangeRequest(w, req)
		if !ok {
			return
		}
		var body struct {
			Tier      int    `json:"tier"`
			Rationale string `json:"rationale"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		verdict, outcome, err := svc.OverrideTier(req.Context(), principal, repository, number, body.Tier, body.Rationale, time.Now().UTC())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, struct {
			Verdict interface{} `json:"verdict"`
			Outcome interface{} `json:"outcome"`
		}{verdict, outcome})
	})

	return r
}

func pathChangeRequest(w http.ResponseWriter, req *http.Request) (string, int64, bool) {
	repository := chi.URLParam(req, "repository")
	number, err := strconv.ParseInt(chi.URLParam(req, "number"), 10, 64)
	if err != nil {
		http.Error(w, "invalid change request number", http.StatusBadRequest)
		return "", 0, false
	}
	return repository, number, true
}

func writeAuthzError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	if err == authz.ErrInsufficientScope {
		status = http.StatusForbidden
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
