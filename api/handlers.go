/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes grid administration, quote resolution and policy intake via REST
  API. Handles HTTP request/response, JSON serialization, and delegates to
  the commission and factory packages.

ENDPOINTS:
  Grids:
    GET    /api/grids            List the scope's grid in match order
    POST   /api/grids            Create entry (grid/v2 body)
    GET    /api/grids/{id}       Get entry
    PUT    /api/grids/{id}       Replace entry, keeping its position
    DELETE /api/grids/{id}       Delete entry
    POST   /api/grids/import     Bulk import in any grid shape, all-or-nothing

  Quotes:
    POST   /api/quotes/resolve   Resolve one quote
    POST   /api/quotes/batch     Resolve many quotes against one snapshot
    GET    /api/quotes           Recorded quotes, newest first

  Policies:
    POST   /api/policies         Normalize, resolve and record a policy
    GET    /api/policies         List policies
    GET    /api/policies/{id}    Get policy with its quote

  Shapes:
    GET    /api/shapes           Registered grid and policy shapes

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Policies, quotes and resets (SQLite)
  - Grids: Grid reads and writes, usually the snapshot cache over Store
  - Quoter: Resolves against Grids
  - GridFactory/PolicyFactory: External shapes to canonical records

REQUEST FLOW:
  1. Resolve scope (RequireScope middleware)
  2. Parse HTTP request
  3. Map payloads through the factories
  4. Resolve / persist
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON {error, details} with status:
  - 400: Invalid input, invalid entry, unknown shape, bad payload
  - 401: Missing or invalid scope
  - 404: Grid entry or policy not found
  - 409: Duplicate grid ID or policy number
  - 422: No grid entry configured for the query
  - 429: Rate limited
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scope.go: Tenant scope resolution
  - scenarios.go: Demo grid loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Grids         commission.GridStore
	Quoter        *commission.Quoter
	GridFactory   *factory.GridFactory
	PolicyFactory *factory.PolicyFactory
	Log           logrus.FieldLogger
}

// NewHandler creates a handler. grids may be nil, in which case the store
// serves grids directly.
func NewHandler(store *sqlite.Store, grids commission.GridStore, logger logrus.FieldLogger) *Handler {
	if grids == nil {
		grids = store
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Store:         store,
		Grids:         grids,
		Quoter:        commission.NewQuoter(grids),
		GridFactory:   factory.NewGridFactory(),
		PolicyFactory: factory.NewPolicyFactory(),
		Log:           logger,
	}
}

// =============================================================================
// GRID HANDLERS
// =============================================================================

// ListGrids returns the scope's grid in match order.
// Optional filters: ?provider=&product_type=
func (h *Handler) ListGrids(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFrom(r.Context())
	entries, err := h.Grids.Entries(r.Context(), scope)
	if err != nil {
		h.fail(w, r, "Failed to list grid", err)
		return
	}

	provider := r.URL.Query().Get("provider")
	productType := r.URL.Query().Get("product_type")
	dtos := make([]GridDTO, 0, len(entries))
	for _, e := range entries {
		if provider != "" && e.Provider != provider {
			continue
		}
		if productType != "" && e.ProductType != productType {
			continue
		}
		dtos = append(dtos, toGridDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetGrid returns one entry.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Grids.Get(r.Context(), ScopeFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Grid entry not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toGridDTO(entry))
}

// CreateGrid appends an entry to the end of the scope's grid.
func (h *Handler) CreateGrid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := ScopeFrom(ctx)

	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	entry, err := h.GridFactory.ParseRow(factory.CanonicalGridShape, scope, raw)
	if err != nil {
		h.fail(w, r, "Invalid grid entry", err)
		return
	}

	if entry.ID == "" {
		entry.ID = newID("grid")
	} else if _, err := h.Grids.Get(ctx, scope, entry.ID); err == nil {
		writeError(w, http.StatusConflict, "Grid entry already exists", fmt.Errorf("id %s is taken", entry.ID))
		return
	}

	if err := h.Grids.Save(ctx, entry); err != nil {
		h.fail(w, r, "Failed to save grid entry", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"scope": scope, "entry_id": entry.ID}).Info("grid entry created")
	writeJSON(w, http.StatusCreated, toGridDTO(entry))
}

// UpdateGrid replaces an existing entry. The URL ID wins over any body ID.
func (h *Handler) UpdateGrid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := ScopeFrom(ctx)
	id := chi.URLParam(r, "id")

	if _, err := h.Grids.Get(ctx, scope, id); err != nil {
		h.fail(w, r, "Grid entry not found", err)
		return
	}

	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	entry, err := h.GridFactory.ParseRow(factory.CanonicalGridShape, scope, raw)
	if err != nil {
		h.fail(w, r, "Invalid grid entry", err)
		return
	}
	entry.ID = id

	if err := h.Grids.Save(ctx, entry); err != nil {
		h.fail(w, r, "Failed to save grid entry", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"scope": scope, "entry_id": id}).Info("grid entry updated")
	writeJSON(w, http.StatusOK, toGridDTO(entry))
}

// DeleteGrid removes an entry.
func (h *Handler) DeleteGrid(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFrom(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.Grids.Delete(r.Context(), scope, id); err != nil {
		h.fail(w, r, "Failed to delete grid entry", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"scope": scope, "entry_id": id}).Info("grid entry deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// ImportGrids maps every row through the named shape and saves them all,
// or saves nothing when any row fails.
func (h *Handler) ImportGrids(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := ScopeFrom(ctx)

	var req ImportGridsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "No rows to import", nil)
		return
	}

	entries, err := h.GridFactory.ParseRows(req.Shape, scope, req.Rows)
	if err != nil {
		h.fail(w, r, "Import rejected", err)
		return
	}

	seen := make(map[string]int, len(entries))
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = newID("grid")
		}
		if j, dup := seen[entries[i].ID]; dup {
			writeError(w, http.StatusBadRequest, "Import rejected",
				&factory.RowError{Row: i, Err: fmt.Errorf("id %s repeats row %d", entries[i].ID, j)})
			return
		}
		seen[entries[i].ID] = i
	}

	if err := h.saveAll(ctx, entries); err != nil {
		h.fail(w, r, "Failed to import grid", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"scope": scope, "shape": req.Shape, "rows": len(entries)}).Info("grid imported")
	writeJSON(w, http.StatusCreated, ImportGridsResponse{
		Shape:    req.Shape,
		Imported: len(entries),
		Entries:  toGridDTOs(entries),
	})
}

func (h *Handler) saveAll(ctx context.Context, entries []commission.GridEntry) error {
	if bs, ok := h.Grids.(commission.BatchSaver); ok {
		return bs.SaveAll(ctx, entries)
	}
	for _, e := range entries {
		if err := h.Grids.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// ListShapes returns the registered grid and policy shapes.
func (h *Handler) ListShapes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ShapesDTO{
		Grid:   h.GridFactory.Shapes(),
		Policy: h.PolicyFactory.Shapes(),
	})
}

// =============================================================================
// QUOTE HANDLERS
// =============================================================================

// ResolveQuote resolves one quote and records it.
func (h *Handler) ResolveQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := ScopeFrom(ctx)

	var dto QuoteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := dto.toQuoteRequest()
	if err != nil {
		h.fail(w, r, "Invalid quote request", err)
		return
	}

	result, err := h.Quoter.Quote(ctx, scope, req)
	if err != nil {
		h.fail(w, r, "Could not resolve commission", err)
		return
	}

	quote := toQuoteDTO(req, result)
	quote.ID = h.recordQuote(r, "", req, result)
	writeJSON(w, http.StatusOK, quote)
}

// BatchQuotes resolves every request against one grid snapshot. Items fail
// independently; the response is 200 unless the snapshot itself fails.
func (h *Handler) BatchQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := ScopeFrom(ctx)

	var body BatchQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := make([]BatchItemDTO, len(body.Quotes))
	var (
		reqs    []commission.QuoteRequest
		indexes []int
	)
	for i, dto := range body.Quotes {
		items[i].Index = i
		req, err := dto.toQuoteRequest()
		if err != nil {
			items[i].Status, items[i].Error = statusFor(err), errorBody("Invalid quote request", err)
			continue
		}
		reqs = append(reqs, req)
		indexes = append(indexes, i)
	}

	results, err := h.Quoter.QuoteBatch(ctx, scope, reqs)
	if err != nil {
		h.fail(w, r, "Could not load grid", err)
		return
	}

	for k, res := range results {
		i := indexes[k]
		if res.Err != nil {
			items[i].Status, items[i].Error = statusFor(res.Err), errorBody("Could not resolve commission", res.Err)
			continue
		}
		quote := toQuoteDTO(res.Request, *res.Result)
		quote.ID = h.recordQuote(r, "", res.Request, *res.Result)
		items[i].Status, items[i].Quote = http.StatusOK, &quote
	}
	writeJSON(w, http.StatusOK, items)
}

// ListQuotes returns recorded quotes. ?limit= defaults to 100.
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	quotes, err := h.Store.ListQuotes(r.Context(), ScopeFrom(r.Context()), limit)
	if err != nil {
		h.fail(w, r, "Failed to list quotes", err)
		return
	}

	dtos := make([]QuoteDTO, len(quotes))
	for i, q := range quotes {
		dtos[i] = toQuoteRecordDTO(q)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// recordQuote persists a successful quote and returns its ID. A recording
// failure is logged and the quote is still returned to the caller.
func (h *Handler) recordQuote(r *http.Request, policyID string, req commission.QuoteRequest, res commission.QuoteResult) string {
	rec := sqlite.QuoteRecord{
		ID:       newID("quote"),
		Scope:    ScopeFrom(r.Context()),
		PolicyID: policyID,
		Request:  req,
		Result:   res,
	}
	if err := h.Store.SaveQuote(r.Context(), rec); err != nil {
		h.Log.WithError(err).WithField("scope", rec.Scope).Error("failed to record quote")
		return ""
	}
	return rec.ID
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// CreatePolicy normalizes an intake payload, resolves its commission and
// records both. A policy with no configured grid is still recorded with
// commission_status "not_configured".
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := ScopeFrom(ctx)

	var req PolicyIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := h.PolicyFactory.Normalize(req.Shape, scope, req.Payload)
	if err != nil {
		h.fail(w, r, "Invalid policy payload", err)
		return
	}
	record.ID = newID("pol")

	stored := sqlite.StoredPolicy{
		PolicyRecord: record,
		PayloadJSON:  string(req.Payload),
	}

	quoteReq := record.QuoteRequest()
	result, err := h.Quoter.Quote(ctx, scope, quoteReq)
	switch {
	case err == nil:
		stored.CommissionStatus = sqlite.CommissionComputed
		stored.QuoteID = newID("quote")
	case commission.IsNotConfigured(err):
		stored.CommissionStatus = sqlite.CommissionNotConfigured
	default:
		h.fail(w, r, "Could not resolve commission", err)
		return
	}

	var rec *sqlite.QuoteRecord
	if stored.QuoteID != "" {
		rec = &sqlite.QuoteRecord{
			ID:       stored.QuoteID,
			Scope:    scope,
			PolicyID: stored.ID,
			Request:  quoteReq,
			Result:   result,
		}
	}

	if err := h.Store.SavePolicyWithQuote(ctx, stored, rec); err != nil {
		h.fail(w, r, "Failed to save policy", err)
		return
	}

	dto := toPolicyDTO(stored)
	if rec != nil {
		quote := toQuoteRecordDTO(*rec)
		dto.Quote = &quote
	}

	h.Log.WithFields(logrus.Fields{
		"scope":             scope,
		"policy_id":         stored.ID,
		"shape":             stored.Shape,
		"commission_status": stored.CommissionStatus,
	}).Info("policy received")
	writeJSON(w, http.StatusCreated, dto)
}

// ListPolicies returns the scope's policies, newest first.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Store.ListPolicies(r.Context(), ScopeFrom(r.Context()))
	if err != nil {
		h.fail(w, r, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, len(policies))
	for i, p := range policies {
		dtos[i] = toPolicyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns a policy with its recorded quote.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := ScopeFrom(ctx)

	p, err := h.Store.GetPolicy(ctx, scope, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Policy not found", err)
		return
	}

	dto := toPolicyDTO(*p)
	if p.QuoteID != "" {
		q, err := h.Store.GetQuote(ctx, scope, p.QuoteID)
		if err != nil {
			h.fail(w, r, "Failed to load quote", err)
			return
		}
		if q != nil {
			quote := toQuoteRecordDTO(*q)
			dto.Quote = &quote
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

// newID returns a prefixed random ID like "grid-7f7c1c9e-...".
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func readBody(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, factory.ErrUnknownShape),
		errors.Is(err, factory.ErrInvalidPayload),
		commission.IsClientError(err):
		return http.StatusBadRequest
	case commission.IsNotConfigured(err):
		return http.StatusUnprocessableEntity
	case commission.IsNotFound(err), errors.Is(err, sqlite.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrDuplicatePolicy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"scope": ScopeFrom(r.Context()),
		}).Error(strings.ToLower(message))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorBody(message string, err error) *ErrorResponse {
	resp := &ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	return resp
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeJSON(w, status, errorBody(message, err))
}
