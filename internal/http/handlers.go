package http

import (
	"net/http"
	"strconv"
	"strings"

	"huishoudboekje/internal/core"
	"huishoudboekje/internal/services"
)

// transactionJSON is the wire shape of a transaction.
type transactionJSON struct {
	ID              int64   `json:"id"`
	Date            string  `json:"date"`
	Description     string  `json:"description"`
	Counterparty    string  `json:"counterparty"`
	Amount          float64 `json:"amount"`
	CategoryKey     string  `json:"category,omitempty"`
	CategoryName    string  `json:"category_name,omitempty"`
	SubcategoryName string  `json:"subcategory,omitempty"`
	UserContext     *string `json:"user_context,omitempty"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:              t.ID,
		Date:            t.Date,
		Description:     t.Description,
		Counterparty:    t.Counterparty,
		Amount:          t.Amount,
		CategoryKey:     t.CategoryKey,
		CategoryName:    t.CategoryName,
		SubcategoryName: t.SubcategoryName,
		UserContext:     t.UserContext,
	}
}

type suggestionJSON struct {
	CategoryKey     string  `json:"category"`
	SubcategoryName string  `json:"subcategory"`
	Confidence      float64 `json:"confidence"`
	Level           string  `json:"confidence_level"`
	Reasoning       string  `json:"reasoning"`
	Source          string  `json:"source"`
}

func toSuggestionJSON(s core.Suggestion) suggestionJSON {
	return suggestionJSON{
		CategoryKey:     s.CategoryKey,
		SubcategoryName: s.SubcategoryName,
		Confidence:      s.Confidence,
		Level:           string(s.Level()),
		Reasoning:       s.Reasoning,
		Source:          string(s.Source),
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	type categoryJSON struct {
		Key           string   `json:"key"`
		Name          string   `json:"name"`
		Subcategories []string `json:"subcategories"`
	}
	var out []categoryJSON
	for _, c := range s.taxonomy.Categories() {
		out = append(out, categoryJSON{Key: c.Key, Name: c.Name, Subcategories: c.Subcategories})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))

	var opts services.InsightsOptions
	if top := r.URL.Query().Get("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid top parameter"})
			return
		}
		opts.TopCategories = n
	}
	if threshold := r.URL.Query().Get("threshold"); threshold != "" {
		f, err := strconv.ParseFloat(threshold, 64)
		if err != nil || f <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid threshold parameter"})
			return
		}
		opts.OutlierThreshold = f
	}

	insights, err := s.api.InsightsForMonth(r.Context(), month, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.api.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	transactions, err := s.api.TransactionsForMonth(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		filtered := transactions[:0]
		for _, t := range transactions {
			if t.CategoryKey == category {
				filtered = append(filtered, t)
			}
		}
		transactions = filtered
	}

	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid offset parameter"})
		return
	}
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit parameter"})
		return
	}
	total := len(transactions)
	if offset > total {
		offset = total
	}
	transactions = transactions[offset:]
	if limit > 0 && limit < len(transactions) {
		transactions = transactions[:limit]
	}

	out := make([]transactionJSON, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "total": total, "transactions": out})
}

// queryInt parses a non-negative integer query parameter, returning def when
// the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID int64 `json:"transaction_id"`
		SkipCache     bool  `json:"skip_cache"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	suggestion, err := s.api.SuggestForTransaction(r.Context(), req.TransactionID, req.SkipCache)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": req.TransactionID,
		"suggestion":     toSuggestionJSON(suggestion),
	})
}

func (s *Server) handleSuggestBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionIDs []int64 `json:"transaction_ids"`
		SkipCache      bool    `json:"skip_cache"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.TransactionIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "transaction_ids is required"})
		return
	}

	result, err := s.api.SuggestForTransactions(r.Context(), req.TransactionIDs, req.SkipCache)
	if err != nil {
		writeError(w, r, err)
		return
	}

	type itemJSON struct {
		TransactionID int64          `json:"transaction_id"`
		Suggestion    suggestionJSON `json:"suggestion"`
	}
	type errJSON struct {
		TransactionID int64  `json:"transaction_id"`
		Error         string `json:"error"`
	}

	out := struct {
		Suggestions []itemJSON `json:"suggestions"`
		Errors      []errJSON  `json:"errors,omitempty"`
		Success     bool       `json:"success"`
	}{Success: result.Success()}

	for _, item := range result.Suggestions {
		out.Suggestions = append(out.Suggestions, itemJSON{
			TransactionID: item.TransactionID,
			Suggestion:    toSuggestionJSON(item.Suggestion),
		})
	}
	for _, e := range result.Errors {
		out.Errors = append(out.Errors, errJSON{TransactionID: e.TransactionID, Error: e.Err.Error()})
	}

	writeJSON(w, http.StatusOK, out)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction id"})
		return
	}

	var req struct {
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.api.UpdateCategory(r.Context(), id, req.Category, req.Subcategory); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction_id": id, "updated": true})
}

func (s *Server) handleUpdateContext(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction id"})
		return
	}

	var req struct {
		Context string `json:"context"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.api.SetUserContext(r.Context(), id, req.Context); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction_id": id, "updated": true})
}

func (s *Server) handleBulkCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates []services.CategoryAssignment `json:"updates"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Updates) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "updates is required"})
		return
	}

	result := s.api.BulkUpdateCategory(r.Context(), req.Updates)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month     string `json:"month"`
		SkipCache *bool  `json:"skip_cache"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	// Re-analysis defaults to fresh AI evaluations.
	skipCache := true
	if req.SkipCache != nil {
		skipCache = *req.SkipCache
	}

	if err := s.api.RequestReanalyze(r.Context(), req.Month, skipCache); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"month": req.Month, "queued": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month string `json:"month"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.api.RequestExport(r.Context(), req.Month); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"month": req.Month, "queued": true})
}
