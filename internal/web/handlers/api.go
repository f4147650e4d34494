package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contact-scrub/internal/config"
	"github.com/contact-scrub/internal/match"
	"github.com/contact-scrub/internal/output"
	"github.com/contact-scrub/internal/schema"
)

// APIHandler handles the read-only API endpoints
type APIHandler struct {
	Run *config.File
}

// ConfigResponse is the effective run configuration
type ConfigResponse struct {
	Policy   match.Policy                        `json:"policy"`
	Layout   output.Layout                       `json:"layout"`
	Mappings map[schema.Role]map[string][]string `json:"mappings"`
	Sales    SalesResponse                       `json:"sales"`
	Scrub    []string                            `json:"scrub"`
}

// SalesResponse describes sales exclusion settings
type SalesResponse struct {
	IDField      schema.Field `json:"id_field"`
	NormalizeIDs bool         `json:"normalize_ids"`
}

// Health reports that the server is up
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetConfig returns the effective policy, mappings and output layout
func (h *APIHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Run.MatchPolicy()
	if err != nil {
		writeError(w, err)
		return
	}

	mappings := make(map[schema.Role]map[string][]string)
	for role, mapping := range h.Run.SchemaMappings() {
		m := make(map[string][]string, len(mapping))
		for f, aliases := range mapping {
			m[string(f)] = aliases
		}
		mappings[role] = m
	}

	field, opts := h.Run.SalesOptions()
	writeJSON(w, http.StatusOK, ConfigResponse{
		Policy:   policy,
		Layout:   h.Run.OutputLayout(),
		Mappings: mappings,
		Sales:    SalesResponse{IDField: field, NormalizeIDs: opts.NormalizeIDs},
		Scrub:    h.Run.Output.Scrub,
	})
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error    string                    `json:"error"`
	Kind     string                    `json:"kind"`
	Missing  map[string][]schema.Field `json:"missing,omitempty"`
	Problems []string                  `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// badRequest marks client input problems that are not schema or policy errors.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// errorKind classifies err for the response body and the failure metric.
func errorKind(err error) (string, int) {
	var policyErr *match.PolicyConfigError
	var schemaErr *schema.SchemaError
	var cfgErr *config.ValidationError
	var br badRequest
	switch {
	case errors.As(err, &cfgErr):
		return "config", http.StatusUnprocessableEntity
	case errors.As(err, &policyErr):
		return "policy", http.StatusUnprocessableEntity
	case errors.As(err, &schemaErr):
		return "schema", http.StatusUnprocessableEntity
	case errors.As(err, &br):
		return "bad_request", http.StatusBadRequest
	}
	return "internal", http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	kind, status := errorKind(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind}

	var policyErr *match.PolicyConfigError
	var cfgErr *config.ValidationError
	switch {
	case errors.As(err, &policyErr):
		resp.Problems = policyErr.Problems
	case errors.As(err, &cfgErr):
		resp.Problems = cfgErr.Problems
	}
	if schemaErrs := schemaErrors(err); len(schemaErrs) > 0 {
		resp.Missing = make(map[string][]schema.Field, len(schemaErrs))
		for _, e := range schemaErrs {
			resp.Missing[e.Dataset] = e.Missing
		}
	}
	writeJSON(w, status, resp)
}

// schemaErrors collects every *schema.SchemaError in err, including joined ones.
func schemaErrors(err error) []*schema.SchemaError {
	var out []*schema.SchemaError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if se, ok := e.(*schema.SchemaError); ok {
			out = append(out, se)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
