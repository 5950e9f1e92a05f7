package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/identity"
	"pecportal/internal/importer"
	"pecportal/internal/notices"
	"pecportal/internal/portal"
	"pecportal/internal/profiles"
)

// PortalHandler exposes the per-client portal operations.
type PortalHandler struct {
	logger *slog.Logger
}

// NewPortalHandler creates a handler.
func NewPortalHandler(logger *slog.Logger) *PortalHandler {
	return &PortalHandler{logger: logger}
}

// Navigate handles POST /api/navigate.
func (h *PortalHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		View string `json:"view"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	app := AppFromContext(r.Context())
	nav := app.Navigate(payload.View)
	writeJSON(w, http.StatusOK, map[string]any{"navigation": nav, "state": app.Snapshot()})
}

// ListNotices handles GET /api/notices.
func (h *PortalHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	app.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"notices": app.Notices()})
}

// PostNotice handles POST /api/notices.
func (h *PortalHandler) PostNotice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title    string           `json:"title"`
		Content  string           `json:"content"`
		Date     string           `json:"date"`
		Category notices.Category `json:"category"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	n, err := AppFromContext(r.Context()).PostNotice(r.Context(), notices.Notice{
		Title:    payload.Title,
		Content:  payload.Content,
		Date:     payload.Date,
		Category: payload.Category,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, n)
}

// ListEvents handles GET /api/events.
func (h *PortalHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	app.Refresh(r.Context())

	list := app.Events()
	if organizer := strings.TrimSpace(r.URL.Query().Get("organizer")); organizer != "" {
		list = events.OrganizedBy(list, organizer)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

// PostEvent handles POST /api/events.
func (h *PortalHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title           string  `json:"title"`
		Description     string  `json:"description"`
		Date            string  `json:"date"`
		Location        string  `json:"location"`
		Organizer       string  `json:"organizer"`
		ImageURL        *string `json:"imageUrl"`
		RegisteredCount int     `json:"registeredCount"`
		Category        string  `json:"category"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	e, err := AppFromContext(r.Context()).PostEvent(r.Context(), events.Event{
		Title:           payload.Title,
		Description:     payload.Description,
		Date:            payload.Date,
		Location:        payload.Location,
		Organizer:       payload.Organizer,
		ImageURL:        payload.ImageURL,
		RegisteredCount: payload.RegisteredCount,
		Category:        payload.Category,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, e)
}

// ListClubs handles GET /api/clubs.
func (h *PortalHandler) ListClubs(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	app.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"clubs":        app.Clubs(),
		"capabilities": app.Snapshot().Capabilities,
	})
}

// OpenClub handles GET /api/clubs/{id}: selects the club and shows its detail view.
func (h *PortalHandler) OpenClub(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	id := chi.URLParam(r, "id")

	nav, err := app.OpenClub(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	st := app.Snapshot()
	resp := map[string]any{"navigation": nav, "club": st.SelectedClub, "events": []events.Event{}}
	if st.SelectedClub != nil {
		resp["events"] = app.ClubEvents(st.SelectedClub.Name)
	}
	if req, ok := app.JoinRequest(id); ok {
		resp["joinRequest"] = req
	}
	writeJSON(w, http.StatusOK, resp)
}

// JoinClub handles POST /api/clubs/{id}/join.
func (h *PortalHandler) JoinClub(w http.ResponseWriter, r *http.Request) {
	m, err := AppFromContext(r.Context()).RequestJoinClub(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, m)
}

// MentorClub handles POST /api/clubs/{id}/mentor.
func (h *PortalHandler) MentorClub(w http.ResponseWriter, r *http.Request) {
	club, err := AppFromContext(r.Context()).MentorClub(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, club)
}

// MyClub handles GET /api/my-club.
func (h *PortalHandler) MyClub(w http.ResponseWriter, r *http.Request) {
	view, err := AppFromContext(r.Context()).MyClub(r.Context())
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateMyClub handles PUT /api/my-club.
func (h *PortalHandler) UpdateMyClub(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Description string `json:"description"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	club, err := AppFromContext(r.Context()).UpdateClubDescription(r.Context(), payload.Description)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, club)
}

// AddMember handles POST /api/my-club/members.
func (h *PortalHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string           `json:"name"`
		Role clubs.MemberRole `json:"role"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	m, err := AppFromContext(r.Context()).AddClubMember(r.Context(), payload.Name, payload.Role)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, m)
}

// ExportRoster handles GET /api/my-club/roster.csv.
func (h *PortalHandler) ExportRoster(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	if _, err := app.MyClub(r.Context()); err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="roster.csv"`)
	if err := app.ExportRoster(r.Context(), w); err != nil {
		h.logger.Error("export roster", "error", err)
	}
}

// ImportRoster handles POST /api/my-club/roster.csv with a multipart "file" field.
func (h *PortalHandler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVUploadBytes)
	if err := r.ParseMultipartForm(maxCSVUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("CSV upload is too large (max %d bytes)", maxErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid CSV upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "CSV file is required")
		return
	}
	defer func() { _ = file.Close() }()

	summary, err := AppFromContext(r.Context()).ImportRoster(r.Context(), file)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Students handles GET /api/dashboard/students.
func (h *PortalHandler) Students(w http.ResponseWriter, r *http.Request) {
	q, err := parseDirectoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dir, err := AppFromContext(r.Context()).Directory(r.Context(), q)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, dir)
}

// ExportStudents handles GET /api/dashboard/students.csv.
func (h *PortalHandler) ExportStudents(w http.ResponseWriter, r *http.Request) {
	q, err := parseDirectoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	app := AppFromContext(r.Context())
	if err := portal.Authorize(app.User(), portal.ViewDashboard); err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="students.csv"`)
	if err := app.ExportDirectory(r.Context(), w, q); err != nil {
		h.logger.Error("export students", "error", err)
	}
}

const maxSearchQueryLength = 200

func parseDirectoryQuery(r *http.Request) (portal.DirectoryQuery, error) {
	values := r.URL.Query()
	q := portal.DirectoryQuery{
		Department: strings.TrimSpace(values.Get("department")),
		Query:      strings.TrimSpace(values.Get("query")),
	}
	if len(q.Query) > maxSearchQueryLength {
		return portal.DirectoryQuery{}, fmt.Errorf("query too long (max %d characters)", maxSearchQueryLength)
	}
	if q.Department != "" && q.Department != portal.AllDepartments && !knownDepartment(q.Department) {
		return portal.DirectoryQuery{}, fmt.Errorf("unknown department %q", q.Department)
	}
	return q, nil
}

func knownDepartment(name string) bool {
	for _, d := range profiles.Departments {
		if d == name {
			return true
		}
	}
	return false
}

// Feedback handles POST /api/feedback.
func (h *PortalHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	entry, err := AppFromContext(r.Context()).SubmitFeedback(r.Context(), payload.Rating, payload.Comment)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func handleServiceError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var denied *portal.PermissionDeniedError
	switch {
	case errors.Is(err, portal.ErrValidation), errors.Is(err, identity.ErrWeakPassword), errors.Is(err, importer.ErrInvalidCSV):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &denied):
		if denied.Role == "" {
			unauthorized(w)
			return
		}
		writeError(w, http.StatusForbidden, denied.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, identity.ErrEmailNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, identity.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, clubs.ErrNotFound), errors.Is(err, profiles.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, portal.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "client state expired, retry the request")
	default:
		logger.Error("service error", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
	}
}

const (
	maxJSONBodyBytes  int64 = 1 << 20
	maxCSVUploadBytes int64 = 2 << 20
)

var errPayloadTooLarge = errors.New("payload too large")

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		return err
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	// Return generic message to avoid leaking internal JSON parsing details
	writeError(w, http.StatusBadRequest, "invalid request body")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
