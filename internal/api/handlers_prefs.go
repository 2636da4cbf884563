package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/dgallion1/docx2dita/internal/substitute"
)

const maxPreferencesBytes = 1 << 20

// handleGetPreferences lists the stored rules in order. With ?format=lines
// the literal rules are rendered one "ORIGINAL : NEW" per line.
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	rules := s.prefs.Rules()
	if r.URL.Query().Get("format") == "lines" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, substitute.FormatLines(rules))
		return
	}
	writeRules(w, rules)
}

// handlePutPreferences replaces the whole table. A text/plain body is read
// as "ORIGINAL : NEW" lines; anything else as a YAML or JSON mapping.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPreferencesBytes+1))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxPreferencesBytes {
		jsonError(w, "preferences too large", http.StatusRequestEntityTooLarge)
		return
	}

	var table *substitute.Table
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		table = substitute.NewTable(substitute.ParseLines(string(body))...)
	} else {
		table, err = substitute.Decode(body)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := s.prefs.Replace(table); err != nil {
		s.log.Error("save preferences", "error", err)
		jsonError(w, "failed to save preferences", http.StatusInternalServerError)
		return
	}
	s.log.Info("preferences replaced", "rules", table.Len())
	writeRules(w, table.Rules())
}

func writeRules(w http.ResponseWriter, rules []substitute.Rule) {
	if rules == nil {
		rules = []substitute.Rule{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"rules": rules})
}
