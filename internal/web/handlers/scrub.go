package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contact-scrub/internal/config"
	"github.com/contact-scrub/internal/export"
	"github.com/contact-scrub/internal/ingest"
	"github.com/contact-scrub/internal/match"
	"github.com/contact-scrub/internal/metrics"
	"github.com/contact-scrub/internal/pipeline"
	"github.com/contact-scrub/internal/schema"
)

// Multipart part names accepted by POST /api/scrub.
const (
	PartDistribution = "distribution"
	PartReference    = "reference"
	PartSales        = "sales"
)

// ScrubHandler runs the scrub pipeline over uploaded files
type ScrubHandler struct {
	Run            *config.File
	Log            *zap.Logger
	MaxUploadBytes int64
}

// NewScrubHandler creates a scrub handler for the given run configuration
func NewScrubHandler(run *config.File, maxUploadBytes int64, log *zap.Logger) *ScrubHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScrubHandler{Run: run, Log: log.Named("scrub_api"), MaxUploadBytes: maxUploadBytes}
}

// SummaryResponse is returned instead of the file when summary=true
type SummaryResponse struct {
	RunID   string         `json:"run_id"`
	Policy  string         `json:"policy"`
	Stats   pipeline.Stats `json:"stats"`
	Removed map[string]int `json:"removed_by_reference,omitempty"`
}

// Scrub accepts a multipart upload and responds with the scrubbed file.
//
// Form fields: distribution (file, required), reference (file, repeatable),
// sales (file), policy (preset name), format (csv or xlsx), summary (true for JSON stats only).
func (h *ScrubHandler) Scrub(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.fail(w, badRequest{fmt.Errorf("failed to parse upload: %w", err)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := h.Run.PipelineConfig()
	if err != nil {
		h.fail(w, err)
		return
	}
	if preset := r.FormValue("policy"); preset != "" {
		if cfg.Policy, err = match.Preset(match.Mode(preset)); err != nil {
			h.fail(w, err)
			return
		}
	}

	format := export.FormatFor(cfg.OutputName)
	if f := r.FormValue("format"); f != "" {
		if format, err = export.ParseFormat(f); err != nil {
			h.fail(w, badRequest{err})
			return
		}
	}

	in, err := readInput(r.MultipartForm)
	if err != nil {
		h.fail(w, err)
		return
	}

	p, err := pipeline.New(cfg, h.Log)
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := p.Run(in)
	if err != nil {
		h.fail(w, err)
		return
	}

	metrics.ObserveRun(string(res.Policy.Mode), metrics.Counts{
		Input:            res.Stats.Input,
		RemovedBlacklist: res.Stats.RemovedBlacklist,
		RemovedSales:     res.Stats.RemovedSales,
		Output:           res.Stats.Output,
	}, time.Since(start))

	w.Header().Set("X-Scrub-Run-Id", res.RunID)
	if r.FormValue("summary") == "true" {
		writeJSON(w, http.StatusOK, SummaryResponse{
			RunID:   res.RunID,
			Policy:  res.Policy.String(),
			Stats:   res.Stats,
			Removed: res.Trail.Summary().ByReference,
		})
		return
	}

	name := outputName(cfg.OutputName, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if format == export.FormatXLSX {
		err = export.WriteXLSX(w, res.Output, h.Run.Output.Sheet)
	} else {
		err = export.Write(w, res.Output, format)
	}
	if err != nil {
		// Headers are already sent; all that is left is to log it.
		h.Log.Error("failed to write scrub output", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

func (h *ScrubHandler) fail(w http.ResponseWriter, err error) {
	kind, status := errorKind(err)
	metrics.ObserveFailure(kind)
	if status >= http.StatusInternalServerError {
		h.Log.Error("scrub failed", zap.Error(err))
	} else {
		h.Log.Warn("scrub rejected", zap.String("kind", kind), zap.Error(err))
	}
	writeError(w, err)
}

func readInput(form *multipart.Form) (pipeline.Input, error) {
	var in pipeline.Input

	dist := form.File[PartDistribution]
	if len(dist) != 1 {
		return in, badRequest{fmt.Errorf("exactly one %q file is required, got %d", PartDistribution, len(dist))}
	}
	table, err := readPart(dist[0])
	if err != nil {
		return in, err
	}
	in.Distribution = table

	for _, fh := range form.File[PartReference] {
		table, err := readPart(fh)
		if err != nil {
			return in, err
		}
		in.References = append(in.References, table)
	}

	switch sold := form.File[PartSales]; len(sold) {
	case 0:
	case 1:
		table, err := readPart(sold[0])
		if err != nil {
			return in, err
		}
		in.Sales = &table
	default:
		return in, badRequest{fmt.Errorf("at most one %q file is allowed, got %d", PartSales, len(sold))}
	}

	return in, nil
}

func readPart(fh *multipart.FileHeader) (schema.Table, error) {
	f, err := fh.Open()
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	table, err := ingest.Read(f, fh.Filename, ingest.Options{})
	if err != nil {
		return schema.Table{}, badRequest{err}
	}
	return table, nil
}

func outputName(name string, format export.Format) string {
	if export.FormatFor(name) == format {
		return name
	}
	ext := "." + string(format)
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i] + ext
	}
	return name + ext
}

