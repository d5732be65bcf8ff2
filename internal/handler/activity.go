package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/lawoffice/internal/activity"
	"github.com/matthewbaird/lawoffice/internal/signals"
	"github.com/matthewbaird/lawoffice/internal/types"
)

// ActivityHandler serves the activity feed. It reads the activity store
// only, never the ledger tables.
type ActivityHandler struct {
	store activity.Store
	log   logrus.FieldLogger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store, log logrus.FieldLogger) *ActivityHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ActivityHandler{store: store, log: log.WithField("handler", "activity")}
}

// HandleGetEntityActivity returns the newest-first feed for one entity.
// GET /api/activity/{entity_type}/{entity_id}
func (h *ActivityHandler) HandleGetEntityActivity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entity_type")
	entityID := chi.URLParam(r, "entity_id")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "entity_type and entity_id are required")
		return
	}

	q := r.URL.Query()
	opts := activity.DefaultQueryOptions()
	var err error
	if opts.Since, err = timeParam(q, "since", opts.Since); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if opts.Until, err = timeParam(q, "until", nil); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	if mw := q.Get("min_weight"); mw != "" {
		if _, ok := activity.WeightOrder[mw]; !ok {
			writeError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown min_weight: "+mw)
			return
		}
		opts.MinWeight = mw
	}
	if opts.Limit, err = limitParam(q, opts.Limit); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	opts.Cursor = q.Get("cursor")

	entries, nextCursor, totalCount, err := h.store.QueryByEntity(r.Context(), entityType, entityID, opts)
	if err != nil {
		h.log.WithError(err).WithField("entity", entityType+":"+entityID).Error("activity query failed")
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", "activity query failed")
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	writeData(w, struct {
		Activities []types.ActivityEntry `json:"activities"`
		NextCursor string                `json:"next_cursor,omitempty"`
		TotalCount int                   `json:"total_count"`
	}{Activities: entries, NextCursor: nextCursor, TotalCount: totalCount})
}

// HandleGetActivitySummary rolls an entity's activity up by category and
// reports escalations.
// GET /api/activity/{entity_type}/{entity_id}/summary
func (h *ActivityHandler) HandleGetActivitySummary(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entity_type")
	entityID := chi.URLParam(r, "entity_id")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "entity_type and entity_id are required")
		return
	}

	until := time.Now().UTC()
	// Default: 12 months lookback.
	since := until.AddDate(-1, 0, 0)
	sincePtr, err := timeParam(r.URL.Query(), "since", &since)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	opts := activity.QueryOptions{
		Since:     sincePtr,
		Until:     &until,
		MinWeight: "info",
		Limit:     500, // fetch all for aggregation
	}
	entries, _, _, err := h.store.QueryByEntity(r.Context(), entityType, entityID, opts)
	if err != nil {
		h.log.WithError(err).WithField("entity", entityType+":"+entityID).Error("activity query failed")
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", "activity query failed")
		return
	}
	writeData(w, signals.Aggregate(entries, entityType, entityID, *sincePtr, until, signals.DefaultRules))
}

// HandleSearchActivity runs a substring search over activity summaries.
// GET /api/activity/search?q=
func (h *ActivityHandler) HandleSearchActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "q is required")
		return
	}

	opts := activity.DefaultSearchOptions()
	opts.EntityType = q.Get("entity_type")
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	var err error
	if opts.Since, err = timeParam(q, "since", nil); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if opts.Limit, err = limitParam(q, opts.Limit); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	entries, totalCount, err := h.store.Search(r.Context(), query, opts)
	if err != nil {
		h.log.WithError(err).Error("activity search failed")
		writeError(w, http.StatusInternalServerError, "SEARCH_FAILED", "activity search failed")
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	writeData(w, struct {
		Results    []types.ActivityEntry `json:"results"`
		TotalCount int                   `json:"total_count"`
	}{Results: entries, TotalCount: totalCount})
}

func timeParam(q url.Values, name string, def *time.Time) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &paramError{name: name, value: raw}
	}
	return &t, nil
}

func limitParam(q url.Values, def int) (int, error) {
	raw := q.Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &paramError{name: "limit", value: raw}
	}
	return n, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{name: name, value: raw}
	}
	return n, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string { return "invalid " + e.name + ": " + e.value }
