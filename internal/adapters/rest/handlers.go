package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
	usecases_port "listing-scraper-service/internal/core/port/usecases"
)

const maxRequestBody = 1 << 20

// maxPagesLimit - верхняя граница max_pages из запроса
const maxPagesLimit = 20

type ListingHandlers struct {
	scrapeUC usecases_port.ScrapeListingPort
	searchUC usecases_port.SearchListingsPort
	factory  port.ScraperFactoryPort
}

func NewListingHandlers(
	scrapeUC usecases_port.ScrapeListingPort,
	searchUC usecases_port.SearchListingsPort,
	factory port.ScraperFactoryPort,
) *ListingHandlers {
	return &ListingHandlers{scrapeUC: scrapeUC, searchUC: searchUC, factory: factory}
}

// HandleHealth - GET /health
func (h *ListingHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSites - GET /api/v1/sites
func (h *ListingHandlers) HandleSites(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, SitesResponseDTO{
		ListingDomains: h.factory.SupportedDomains(),
		SearchSites:    h.searchUC.Sites(),
	})
}

// HandleScrape - POST /api/v1/listings/scrape
func (h *ListingHandlers) HandleScrape(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleScrape"})

	var req ScrapeRequestDTO
	if !decodeBody(w, r, logger, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		WriteJSONError(w, http.StatusBadRequest, "Field 'url' is required")
		return
	}

	reqLogger := logger.WithFields(port.Fields{"url": req.URL})
	reqLogger.Info("Received scrape request", nil)

	outcome, err := h.scrapeUC.Execute(r.Context(), req.URL)
	if err != nil {
		writeUseCaseError(w, reqLogger, err)
		return
	}
	if !outcome.OK() {
		writeFailure(w, reqLogger, outcome.Failure)
		return
	}

	RespondWithJSON(w, http.StatusOK, toListingResponse(outcome.Listing))
}

// HandleSearch - POST /api/v1/listings/search
func (h *ListingHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleSearch"})

	var req SearchRequestDTO
	if !decodeBody(w, r, logger, &req) {
		return
	}
	req.Site = strings.ToLower(strings.TrimSpace(req.Site))
	if req.Site == "" {
		WriteJSONError(w, http.StatusBadRequest, "Field 'site' is required")
		return
	}
	if req.MaxPages < 0 || req.MaxPages > maxPagesLimit {
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Field 'max_pages' must be between 0 and %d", maxPagesLimit))
		return
	}
	if msg := validateCriteria(req.Criteria); msg != "" {
		WriteJSONError(w, http.StatusBadRequest, msg)
		return
	}

	reqLogger := logger.WithFields(port.Fields{"site": req.Site, "max_pages": req.MaxPages})
	reqLogger.Info("Received search request", nil)

	outcome, err := h.searchUC.Execute(r.Context(), req.Site, req.Criteria.toDomain(), req.MaxPages)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSearchSite) {
			WriteJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("Search is not available for %q; supported: %s", req.Site, strings.Join(h.searchUC.Sites(), ", ")))
			return
		}
		writeUseCaseError(w, reqLogger, err)
		return
	}
	if !outcome.OK() {
		writeFailure(w, reqLogger, outcome.Failure)
		return
	}

	RespondWithJSON(w, http.StatusOK, SearchResponseDTO{
		Site:         outcome.Site,
		URLs:         orEmpty(outcome.URLs),
		TotalFound:   outcome.TotalFound,
		PagesVisited: outcome.PagesVisited,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger port.LoggerPort, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			WriteJSONError(w, http.StatusBadRequest, "Request body is empty")
			return false
		}
		logger.Warn("Failed to decode request body", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func validateCriteria(c CriteriaDTO) string {
	bounds := []struct {
		name  string
		value *int
	}{
		{"price_min", c.PriceMin}, {"price_max", c.PriceMax},
		{"rooms_min", c.RoomsMin}, {"rooms_max", c.RoomsMax},
		{"beds_min", c.BedsMin}, {"baths_min", c.BathsMin},
	}
	for _, b := range bounds {
		if b.value != nil && *b.value < 0 {
			return fmt.Sprintf("Field 'criteria.%s' cannot be negative", b.name)
		}
	}
	if c.PriceMin != nil && c.PriceMax != nil && *c.PriceMin > *c.PriceMax {
		return "Field 'criteria.price_min' cannot exceed 'criteria.price_max'"
	}
	if c.RoomsMin != nil && c.RoomsMax != nil && *c.RoomsMin > *c.RoomsMax {
		return "Field 'criteria.rooms_min' cannot exceed 'criteria.rooms_max'"
	}
	return ""
}

// failureStatus сопоставляет вид неудачи HTTP-статусу
func failureStatus(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureUnsupported:
		return http.StatusBadRequest
	case domain.FailureBlocked:
		return http.StatusServiceUnavailable
	case domain.FailureFetch:
		return http.StatusBadGateway
	case domain.FailureExtraction:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, logger port.LoggerPort, f *domain.Failure) {
	if f == nil {
		WriteJSONError(w, http.StatusInternalServerError, "Empty result")
		return
	}
	status := failureStatus(f.Kind)
	logger.Warn("Request finished with a failure", port.Fields{"kind": f.Kind, "reason": f.Reason, "status_code": status})
	RespondWithJSON(w, status, ErrorResponseDTO{Error: f.Reason, Kind: string(f.Kind), Site: f.Site})
}

func writeUseCaseError(w http.ResponseWriter, logger port.LoggerPort, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		logger.Warn("Request timed out", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusGatewayTimeout, "The source site did not respond in time")
		return
	}
	logger.Error("Use case execution failed", err, nil)
	WriteJSONError(w, http.StatusInternalServerError, "Internal error while processing the request")
}
