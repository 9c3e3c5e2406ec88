package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/reportedit/chart"
	"github.com/hazyhaar/reportedit/editor"
	"github.com/hazyhaar/reportedit/horosafe"
	"github.com/hazyhaar/reportedit/kit"
	"github.com/hazyhaar/reportedit/publish"
	"github.com/hazyhaar/reportedit/sections"
	"github.com/hazyhaar/reportedit/theme"
	"github.com/hazyhaar/reportedit/toolbar"
)

type loadRequest struct {
	Name string `json:"name"`
	HTML string `json:"html"`
}

type chartRequest struct {
	ID string `json:"id"`
}

type updateChartRequest struct {
	ID    string           `json:"id"`
	Chart chart.Descriptor `json:"chart"`
}

type chartOpsRequest struct {
	ID  string     `json:"id"`
	Ops []chart.Op `json:"ops"`
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type reportRequest struct {
	ID string `json:"id"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	data, err := horosafe.LimitedReadAll(r.Body, horosafe.MaxDocumentBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func decodeInto[T any](r *http.Request) (any, error) {
	var v T
	if err := decodeJSON(r, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func noRequest(*http.Request) (any, error) { return nil, nil }

// decodeDocument accepts either a raw HTML body (name from ?name= or the
// X-Report-Name header) or a JSON {name, html} body.
func decodeDocument(r *http.Request) (any, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return decodeInto[loadRequest](r)
	}
	data, err := horosafe.LimitedReadAll(r.Body, horosafe.MaxDocumentBody)
	if err != nil {
		return nil, err
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = r.Header.Get("X-Report-Name")
	}
	return &loadRequest{Name: name, HTML: string(data)}, nil
}

// endpointHandler adapts a kit.Endpoint to HTTP.
func (s *Server) endpointHandler(ep kit.Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp, err := ep(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) loadEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*loadRequest)
	if strings.TrimSpace(r.HTML) == "" {
		return nil, fmt.Errorf("%w: empty document", errBadRequest)
	}
	if err := s.ed.Load(ctx, r.Name, r.HTML); err != nil {
		return nil, err
	}
	return map[string]any{"name": r.Name, "bytes": len(r.HTML)}, nil
}

func (s *Server) enableEndpoint(ctx context.Context, _ any) (any, error) {
	return s.ed.Enable(ctx)
}

func (s *Server) disableEndpoint(ctx context.Context, _ any) (any, error) {
	if err := s.ed.Disable(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"mode": s.ed.Mode()}, nil
}

func (s *Server) saveEndpoint(ctx context.Context, _ any) (any, error) {
	saved, err := s.ed.Save(ctx)
	if err != nil && saved.Bytes == 0 {
		return nil, err
	}
	if err != nil {
		// The document was saved; only publishing failed.
		return map[string]any{"saved": saved, "publish_error": err.Error()}, nil
	}
	return map[string]any{"saved": saved}, nil
}

func (s *Server) cancelEndpoint(ctx context.Context, _ any) (any, error) {
	if err := s.ed.Cancel(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"mode": s.ed.Mode()}, nil
}

func (s *Server) listChartsEndpoint(ctx context.Context, _ any) (any, error) {
	return s.ed.Charts(ctx)
}

func (s *Server) getChartEndpoint(ctx context.Context, req any) (any, error) {
	return s.ed.Chart(ctx, req.(*chartRequest).ID)
}

func (s *Server) updateChartEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*updateChartRequest)
	r.Chart.ID = r.ID
	return s.ed.UpdateChart(ctx, r.Chart)
}

func (s *Server) chartOpsEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*chartOpsRequest)
	if len(r.Ops) == 0 {
		return nil, fmt.Errorf("%w: no ops", errBadRequest)
	}
	return s.ed.EditChart(ctx, r.ID, r.Ops...)
}

func (s *Server) listSectionsEndpoint(ctx context.Context, _ any) (any, error) {
	list, err := s.ed.Sections(ctx)
	if list == nil && err == nil {
		list = []sections.Summary{}
	}
	return list, err
}

func (s *Server) moveSectionEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*moveRequest)
	return s.ed.MoveSection(ctx, r.From, r.To)
}

func (s *Server) toolbarEndpoint(context.Context, any) (any, error) {
	return s.ed.Toolbar(), nil
}

func (s *Server) frameEndpoint(_ context.Context, req any) (any, error) {
	s.ed.SetFrameOffset(*req.(*toolbar.Point))
	return s.ed.Toolbar(), nil
}

func (s *Server) formatEndpoint(ctx context.Context, req any) (any, error) {
	return s.ed.Format(ctx, *req.(*editor.FormatRequest))
}

func (s *Server) themeEndpoint(ctx context.Context, req any) (any, error) {
	o := *req.(*theme.Overrides)
	if err := s.ed.Theme(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Server) fontsEndpoint(context.Context, any) (any, error) {
	return theme.Fonts, nil
}

func (s *Server) reportChartsEndpoint(ctx context.Context, req any) (any, error) {
	if s.cfg.Reports == nil {
		return nil, publish.ErrNotFound
	}
	id := req.(*reportRequest).ID
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	rep, err := s.cfg.Reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return editor.StaticCharts(rep.HTML)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, doc, err := s.ed.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", publish.FileName(name)))
	w.Write([]byte(doc))
}

func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	_, doc, err := s.ed.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}
	md, err := publish.Markdown(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(md))
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if !strings.HasSuffix(file, ".html") {
		writeError(w, r, publish.ErrNotFound)
		return
	}
	id := strings.TrimSuffix(file, ".html")
	if err := horosafe.ValidateIdentifier(id); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	rep, err := s.cfg.Reports.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	// Reports run their chart scripts in an opaque origin.
	h.Set("Content-Security-Policy", "sandbox allow-scripts")
	w.Write([]byte(rep.HTML))
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.cfg.Reports.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	type entry struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		URL       string `json:"url"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]entry, 0, len(list))
	for _, rep := range list {
		out = append(out, entry{
			ID:        rep.ID,
			Name:      rep.Name,
			URL:       "/reports/" + rep.ID + ".html",
			CreatedAt: rep.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
