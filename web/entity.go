package web

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/omniscale/mapent"
	"github.com/omniscale/mapent/auth"
	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/document"
	"github.com/omniscale/mapent/export"
	"github.com/omniscale/mapent/history"
	"github.com/omniscale/mapent/mapping"
	"github.com/omniscale/mapent/render"
)

// entityHandler serves the generated views of one registered entity.
type entityHandler struct {
	srv  *Server
	ent  mapent.Entity
	spec *mapping.Entity
}

func (h *entityHandler) layer(w http.ResponseWriter, req *http.Request) {
	h.srv.layers.Serve(w, req, h.spec)
}

func (h *entityHandler) list(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	p := render.NewPagination(req, h.srv.conf.PageSize, 0)
	query := strings.TrimSpace(req.URL.Query().Get("q"))

	filter := database.Filter{Limit: p.PageSize, Offset: p.Offset()}
	if query != "" {
		filter.FieldContains = map[string]string{h.spec.TitleField: query}
	}
	records, total, err := h.srv.store.List(ctx, h.spec, filter)
	if err != nil {
		h.srv.logger.Error("list", zap.String("entity", h.ent.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	p.Total = total

	history.SaveLastList(ctx, h.srv.sessions, req.URL.RequestURI())

	columns := make([]string, 0, len(h.spec.Fields))
	for _, f := range h.spec.Fields {
		columns = append(columns, f.Label)
	}
	rows := make([]render.ListRow, 0, len(records))
	for _, r := range records {
		row := render.ListRow{ID: r.ID, URL: fmt.Sprintf(h.ent.DetailURLFormat(), r.ID)}
		for _, f := range h.spec.Fields {
			row.Cells = append(row.Cells, database.FormatValue(r.Fields[f.Name]))
		}
		rows = append(rows, row)
	}

	user := auth.FromContext(ctx)
	page := h.srv.page(req, h.ent.LabelPlural)
	page.Data = render.ListData{
		Entity:     h.spec,
		Columns:    columns,
		Rows:       rows,
		Query:      query,
		CanAdd:     h.ent.HasKind(mapent.KindCreate) && h.srv.auth.Allowed(user, mapent.Codename(mapent.ActionAdd, h.ent.Name)),
		CanExport:  h.ent.HasKind(mapent.KindFormatList) && h.srv.auth.Allowed(user, mapent.Codename(mapent.ActionExport, h.ent.Name)),
		Pagination: p,
	}
	h.srv.render.HTML(w, http.StatusOK, "list.html", page)
}

// records serves the datatables flavored JSON the list widget loads.
func (h *entityHandler) records(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	q := req.URL.Query()
	start, _ := strconv.Atoi(q.Get("iDisplayStart"))
	if start < 0 {
		start = 0
	}
	length, err := strconv.Atoi(q.Get("iDisplayLength"))
	if err != nil || length <= 0 {
		length = h.srv.conf.PageSize
	}
	search := strings.TrimSpace(q.Get("sSearch"))

	filter := database.Filter{Limit: length, Offset: start}
	if search != "" {
		filter.FieldContains = map[string]string{h.spec.TitleField: search}
	}
	records, filtered, err := h.srv.store.List(ctx, h.spec, filter)
	if err != nil {
		h.srv.logger.Error("records", zap.String("entity", h.ent.Name), zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	total := filtered
	if search != "" {
		if _, total, err = h.srv.store.List(ctx, h.spec, database.Filter{Limit: 1}); err != nil {
			h.srv.logger.Error("records", zap.String("entity", h.ent.Name), zap.Error(err))
			render.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		row := make([]interface{}, 0, len(h.spec.Fields)+1)
		row = append(row, r.ID)
		for _, f := range h.spec.Fields {
			row = append(row, database.FormatValue(r.Fields[f.Name]))
		}
		rows = append(rows, row)
	}
	render.JSON(w, http.StatusOK, map[string]interface{}{
		"sEcho":                q.Get("sEcho"),
		"iTotalRecords":        total,
		"iTotalDisplayRecords": filtered,
		"aaData":               rows,
	})
}

func (h *entityHandler) exportList(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("format")
	format, ok := export.ParseFormat(name)
	if !ok {
		h.srv.logger.Warn("export: unsupported format",
			zap.String("format", name), zap.String("entity", h.ent.Name))
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	h.srv.stats.Export(h.ent.Name, string(format))

	query := strings.TrimSpace(req.URL.Query().Get("q"))
	filter := database.Filter{}
	if query != "" {
		filter.FieldContains = map[string]string{h.spec.TitleField: query}
	}
	records, _, err := h.srv.store.List(req.Context(), h.spec, filter)
	if err != nil {
		h.srv.logger.Error("export list", zap.String("entity", h.ent.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.srv.exporter.Serve(w, req, h.spec, records)
}

func (h *entityHandler) detail(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	id, rec, ok := h.record(w, req)
	if !ok {
		return
	}
	title := rec.Title(h.spec)
	history.Save(ctx, h.srv.sessions, history.Entry{
		Title: title,
		Path:  fmt.Sprintf(h.ent.DetailURLFormat(), id),
		Model: h.ent.Name,
	}, h.srv.conf.HistoryItemsMax)

	fields := make([]render.FieldView, 0, len(h.spec.Fields))
	for _, f := range h.spec.Fields {
		fields = append(fields, render.FieldView{
			Name:  f.Name,
			Label: f.Label,
			Value: database.FormatValue(rec.Fields[f.Name]),
		})
	}

	user := auth.FromContext(ctx)
	data := render.DetailData{
		Entity:    h.spec,
		ID:        id,
		Title:     title,
		Fields:    fields,
		CanChange: h.ent.HasKind(mapent.KindUpdate) && h.srv.auth.Allowed(user, mapent.Codename(mapent.ActionChange, h.ent.Name)),
		CanDelete: h.ent.HasKind(mapent.KindDelete) && h.srv.auth.Allowed(user, mapent.Codename(mapent.ActionDelete, h.ent.Name)),
	}

	if h.srv.conf.ActionHistoryEnabled {
		if logs, isLog := h.srv.store.(database.LogStore); isLog {
			limit := h.srv.conf.ActionHistoryLength
			// one extra entry tells us whether to show the ellipsis
			entries, err := logs.RecentLogEntries(ctx, h.ent.Name, id, limit+1)
			if err != nil {
				h.srv.logger.Warn("action log read",
					zap.String("entity", h.ent.Name), zap.Int64("id", id), zap.Error(err))
			} else if len(entries) > limit {
				data.LogEntries = entries[:limit]
				data.MoreLogEntries = true
			} else {
				data.LogEntries = entries
			}
		}
	}

	page := h.srv.page(req, title)
	page.Data = data
	h.srv.render.HTML(w, http.StatusOK, "detail.html", page)
}

func (h *entityHandler) createForm(w http.ResponseWriter, req *http.Request) {
	page := h.srv.page(req, "Add "+h.spec.Label)
	page.Data = render.FormData{
		Heading:   "Add " + h.spec.Label,
		Fields:    emptyFormFields(h.spec),
		CancelURL: h.ent.ListURL(),
	}
	h.srv.render.HTML(w, http.StatusOK, "form.html", page)
}

func (h *entityHandler) create(w http.ResponseWriter, req *http.Request) {
	rec, form, ok := h.parseForm(req, nil)
	if !ok {
		form.Heading = "Add " + h.spec.Label
		form.CancelURL = h.ent.ListURL()
		page := h.srv.page(req, "Add "+h.spec.Label)
		page.Data = form
		h.srv.render.HTML(w, http.StatusOK, "form.html", page)
		return
	}
	id, err := h.srv.store.Insert(req.Context(), h.spec, rec)
	if err != nil {
		h.srv.logger.Error("insert", zap.String("entity", h.ent.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logAction(req, database.LogAddition, id, rec.Title(h.spec))
	render.SetFlash(req.Context(), h.srv.sessions, "success", h.spec.Label+" created.")
	http.Redirect(w, req, fmt.Sprintf(h.ent.DetailURLFormat(), id), http.StatusFound)
}

func (h *entityHandler) updateForm(w http.ResponseWriter, req *http.Request) {
	id, rec, ok := h.record(w, req)
	if !ok {
		return
	}
	title := rec.Title(h.spec)
	page := h.srv.page(req, "Update "+title)
	page.Data = render.FormData{
		Heading:   "Update " + title,
		Fields:    recordFormFields(h.spec, rec),
		Geom:      h.geomString(rec.Geom),
		CancelURL: fmt.Sprintf(h.ent.DetailURLFormat(), id),
	}
	h.srv.render.HTML(w, http.StatusOK, "form.html", page)
}

func (h *entityHandler) update(w http.ResponseWriter, req *http.Request) {
	id, rec, ok := h.record(w, req)
	if !ok {
		return
	}
	updated, form, formOK := h.parseForm(req, rec)
	if !formOK {
		title := rec.Title(h.spec)
		form.Heading = "Update " + title
		form.CancelURL = fmt.Sprintf(h.ent.DetailURLFormat(), id)
		page := h.srv.page(req, "Update "+title)
		page.Data = form
		h.srv.render.HTML(w, http.StatusOK, "form.html", page)
		return
	}
	updated.ID = id
	if err := h.srv.store.Update(req.Context(), h.spec, updated); err != nil {
		if errors.Cause(err) == database.ErrNotFound {
			http.NotFound(w, req)
			return
		}
		h.srv.logger.Error("update", zap.String("entity", h.ent.Name), zap.Int64("id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logAction(req, database.LogChange, id, updated.Title(h.spec))
	render.SetFlash(req.Context(), h.srv.sessions, "success", h.spec.Label+" updated.")
	http.Redirect(w, req, fmt.Sprintf(h.ent.DetailURLFormat(), id), http.StatusFound)
}

func (h *entityHandler) deleteForm(w http.ResponseWriter, req *http.Request) {
	id, rec, ok := h.record(w, req)
	if !ok {
		return
	}
	title := rec.Title(h.spec)
	page := h.srv.page(req, "Delete "+title)
	page.Data = render.DeleteData{
		Title:       title,
		EntityLabel: h.spec.Label,
		CancelURL:   fmt.Sprintf(h.ent.DetailURLFormat(), id),
	}
	h.srv.render.HTML(w, http.StatusOK, "confirm_delete.html", page)
}

func (h *entityHandler) delete(w http.ResponseWriter, req *http.Request) {
	id, rec, ok := h.record(w, req)
	if !ok {
		return
	}
	if err := h.srv.store.Delete(req.Context(), h.spec, id); err != nil {
		if errors.Cause(err) == database.ErrNotFound {
			http.NotFound(w, req)
			return
		}
		h.srv.logger.Error("delete", zap.String("entity", h.ent.Name), zap.Int64("id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	history.DeletePath(req.Context(), h.srv.sessions, fmt.Sprintf(h.ent.DetailURLFormat(), id))
	h.logAction(req, database.LogDeletion, id, rec.Title(h.spec))
	render.SetFlash(req.Context(), h.srv.sessions, "success", h.spec.Label+" deleted.")

	to := history.LastList(req.Context(), h.srv.sessions)
	if to == "" {
		to = h.ent.ListURL()
	}
	http.Redirect(w, req, to, http.StatusFound)
}

func (h *entityHandler) documentODT(w http.ResponseWriter, req *http.Request) {
	id, rec, ok := h.record(w, req)
	if !ok {
		return
	}
	doc := document.NewDocument(h.spec, rec, time.Now())
	if img, err := os.ReadFile(h.mapImagePath(id)); err == nil {
		doc.MapImage = img
	}
	var buf bytes.Buffer
	if err := h.srv.builder.Build(&buf, h.ent.Name, doc); err != nil {
		h.srv.logger.Error("document build",
			zap.String("entity", h.ent.Name), zap.Int64("id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.oasis.opendocument.text")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%d.odt"`, h.ent.Name, id))
	w.Write(buf.Bytes())
}

func (h *entityHandler) documentPDF(w http.ResponseWriter, req *http.Request) {
	id, _, ok := h.record(w, req)
	if !ok {
		return
	}
	odtURL := h.srv.conf.RootURL + fmt.Sprintf("/%s/%d/document.odt", h.ent.Name, id)
	body, mediaType, err := h.srv.converter.Convert(req.Context(), odtURL, "pdf")
	if err != nil {
		if errors.Cause(err) == document.ErrConversionUnavailable {
			http.Error(w, "conversion server not configured", http.StatusServiceUnavailable)
			return
		}
		h.srv.logger.Error("document convert",
			zap.String("entity", h.ent.Name), zap.Int64("id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if mediaType == "" {
		mediaType = "application/pdf"
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%d.pdf"`, h.ent.Name, id))
	w.Write(body)
}

// mapImage serves the stored capture of the record's map view,
// capturing a fresh one when the file is missing or older than the
// record.
func (h *entityHandler) mapImage(w http.ResponseWriter, req *http.Request) {
	id, rec, ok := h.record(w, req)
	if !ok {
		return
	}
	dest := h.mapImagePath(id)
	fi, err := os.Stat(dest)
	if err != nil || fi.ModTime().Before(rec.Updated) {
		printURL := h.srv.conf.RootURL + fmt.Sprintf("/%s/%d/?context=print", h.ent.Name, id)
		width, height := h.srv.capturer.Size(1)
		if err := h.srv.capturer.CaptureTo(req.Context(), dest, printURL, width, height); err != nil {
			if errors.Cause(err) == document.ErrCaptureUnavailable {
				http.NotFound(w, req)
				return
			}
			h.srv.logger.Error("map capture",
				zap.String("entity", h.ent.Name), zap.Int64("id", id), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	http.ServeFile(w, req, dest)
}

func (h *entityHandler) mapImagePath(id int64) string {
	return filepath.Join(h.srv.conf.MediaDir, "maps",
		fmt.Sprintf("%s-%d.png", h.ent.Name, id))
}

// record resolves the id route parameter. Bad ids and unknown records
// are answered with 404.
func (h *entityHandler) record(w http.ResponseWriter, req *http.Request) (int64, *database.Record, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, req)
		return 0, nil, false
	}
	rec, err := h.srv.store.Get(req.Context(), h.spec, id)
	if err != nil {
		if errors.Cause(err) == database.ErrNotFound {
			http.NotFound(w, req)
		} else {
			h.srv.logger.Error("get record",
				zap.String("entity", h.ent.Name), zap.Int64("id", id), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return 0, nil, false
	}
	return id, rec, true
}

func (h *entityHandler) logAction(req *http.Request, action database.LogAction, id int64, repr string) {
	h.srv.stats.Action(h.ent.Name, string(action))
	if !h.srv.conf.ActionHistoryEnabled {
		return
	}
	logs, ok := h.srv.store.(database.LogStore)
	if !ok {
		return
	}
	username := ""
	if user := auth.FromContext(req.Context()); user != nil {
		username = user.Name
	}
	entry := &database.LogEntry{
		Time:       time.Now(),
		User:       username,
		Entity:     h.ent.Name,
		ObjectID:   id,
		ObjectRepr: repr,
		Action:     action,
	}
	if err := logs.AddLogEntry(req.Context(), entry); err != nil {
		h.srv.logger.Warn("action log write",
			zap.String("entity", h.ent.Name), zap.Error(err))
	}
}
