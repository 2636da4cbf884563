package api

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/docx2dita/internal/convert"
	"github.com/dgallion1/docx2dita/internal/images"
	"github.com/dgallion1/docx2dita/internal/parser"
	"github.com/dgallion1/docx2dita/internal/pipeline"
	"github.com/dgallion1/docx2dita/internal/substitute"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	taskID := strings.TrimSpace(r.FormValue("task_id"))
	if taskID == "" {
		jsonError(w, "task_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	opts, err := s.jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	filename := sanitizeFilename(header.Filename)
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if !parser.IsSupportedExtension(filename) && parser.Sniff(data) == "" {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(filename, taskID, data, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("conversion queued", "job_id", job.ID, "task_id", taskID, "filename", filename, "bytes", len(data))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     job.ID,
		"task_id":    job.TaskID,
		"status":     job.Status,
		"poll_url":   fmt.Sprintf("/api/convert/%s/status", job.ID),
		"result_url": fmt.Sprintf("/api/convert/%s/result", job.ID),
	})
}

func (s *Server) handleConvertStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// handleConvertResult returns the .dita file, or a zip holding it and its
// images when any were extracted.
func (s *Server) handleConvertResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted:
	case pipeline.StatusFailed:
		jsonError(w, "conversion failed: "+strings.Join(snap.Progress.Errors, "; "), http.StatusUnprocessableEntity)
		return
	default:
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}

	res := job.Result()
	base := sanitizeFilename(snap.TaskID)
	if len(res.Images) == 0 {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+convert.Extension))
		w.Write([]byte(res.Output))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".zip"))
	if err := writeArchive(w, base+convert.Extension, res); err != nil {
		s.log.Error("write result archive", "job_id", jobID, "error", err)
	}
}

func writeArchive(w io.Writer, name string, res *pipeline.Result) error {
	zw := zip.NewWriter(w)
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, res.Output); err != nil {
		return err
	}
	for _, img := range res.Images {
		f, err := zw.Create(path.Clean(filepath.ToSlash(img.Path)))
		if err != nil {
			return err
		}
		if _, err := f.Write(img.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (s *Server) handleBatchConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	opts, err := s.jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)

		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}

		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or read error",
			})
			continue
		}
		if !parser.IsSupportedExtension(filename) && parser.Sniff(data) == "" {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		job := pipeline.NewJob(filename, taskIDFromFilename(filename), data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"task_id":  job.TaskID,
			"status":   job.Status,
			"poll_url": fmt.Sprintf("/api/convert/%s/status", job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

// jobOptions reads conversion settings from the form, defaulting to the
// service configuration.
func (s *Server) jobOptions(r *http.Request) (pipeline.Options, error) {
	var opts pipeline.Options
	var err error
	if opts.IncludeImages, err = formBool(r, "include_images", false); err != nil {
		return opts, err
	}
	if opts.DetectShortDesc, err = formBool(r, "detect_shortdesc", s.cfg.DetectShortDesc); err != nil {
		return opts, err
	}
	if opts.DetectNotes, err = formBool(r, "detect_notes", s.cfg.DetectNotes); err != nil {
		return opts, err
	}
	if opts.ConfirmNotes, err = formBool(r, "confirm_notes", s.cfg.ConfirmNotes); err != nil {
		return opts, err
	}
	if opts.ShortDescVerdict, err = formVerdict(r, "shortdesc_verdict"); err != nil {
		return opts, err
	}
	if opts.NoteVerdict, err = formVerdict(r, "note_verdict"); err != nil {
		return opts, err
	}

	opts.Placement = s.cfg.Placement()
	if v := r.FormValue("placement"); v != "" {
		if opts.Placement, err = images.ParsePlacement(v); err != nil {
			return opts, err
		}
	}

	opts.Rules = s.prefs.Rules()
	if v := r.FormValue("preferences"); strings.TrimSpace(v) != "" {
		if opts.Rules, err = parseRules(v, r.FormValue("preferences_format")); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// parseRules reads "ORIGINAL : NEW" lines. A YAML or JSON mapping is only
// read when format says so, or when the body is a JSON object.
func parseRules(text, format string) ([]substitute.Rule, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		if !strings.HasPrefix(strings.TrimSpace(text), "{") {
			return parseLineRules(text)
		}
	case "lines":
		return parseLineRules(text)
	case "yaml", "json":
	default:
		return nil, fmt.Errorf("preferences_format: unknown format %q (want lines, yaml or json)", format)
	}
	t, err := substitute.Decode([]byte(text))
	if err != nil {
		return nil, err
	}
	return t.Rules(), nil
}

func parseLineRules(text string) ([]substitute.Rule, error) {
	rules := substitute.ParseLines(text)
	if len(rules) == 0 {
		return nil, fmt.Errorf("preferences: no rules found")
	}
	return rules, nil
}

func formBool(r *http.Request, key string, def bool) (bool, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

// formVerdict returns nil when key is absent so the decision stays open.
func formVerdict(r *http.Request, key string) (*bool, error) {
	if strings.TrimSpace(r.FormValue(key)) == "" {
		return nil, nil
	}
	b, err := formBool(r, key, false)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// taskIDFromFilename derives a task id from an upload name: lower case,
// with runs of other characters collapsed to "-".
func taskIDFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimSuffix(sb.String(), "-")
	if id == "" {
		id = "task"
	}
	return id
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
