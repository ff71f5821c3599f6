package rabbitmq

import (
	"listing-scraper-service/internal/core/domain"

	"github.com/google/uuid"
)

// ScrapeTaskDTO - тело ScrapeTaskEvent/1.0.0
type ScrapeTaskDTO struct {
	TaskID uuid.UUID `json:"task_id"`
	URL    string    `json:"url"`
}

// SearchTaskDTO - тело SearchTaskEvent/1.0.0
type SearchTaskDTO struct {
	TaskID   uuid.UUID   `json:"task_id"`
	Site     string      `json:"site"`
	MaxPages int         `json:"max_pages,omitempty"`
	Criteria CriteriaDTO `json:"criteria"`
}

type CriteriaDTO struct {
	Location     string `json:"location,omitempty"`
	State        string `json:"state,omitempty"`
	PropertyType string `json:"property_type,omitempty"`
	PriceMin     *int   `json:"price_min,omitempty"`
	PriceMax     *int   `json:"price_max,omitempty"`
	RoomsMin     *int   `json:"rooms_min,omitempty"`
	RoomsMax     *int   `json:"rooms_max,omitempty"`
	BedsMin      *int   `json:"beds_min,omitempty"`
	BathsMin     *int   `json:"baths_min,omitempty"`
}

type ListingDTO struct {
	Title          string   `json:"title"`
	Price          string   `json:"price"`
	Location       string   `json:"location"`
	Surface        string   `json:"surface"`
	Rooms          string   `json:"rooms"`
	Features       []string `json:"features"`
	DescriptionRaw string   `json:"description_raw"`
	Images         []string `json:"images"`
	PropertyType   *string  `json:"property_type"`
	SourceURL      string   `json:"source_url"`
	Site           string   `json:"site"`
}

type FailureDTO struct {
	Kind   string `json:"kind"`
	Site   string `json:"site,omitempty"`
	Reason string `json:"reason"`
}

// ListingScrapedEventDTO - результат парсинга, ровно одно из Listing/Failure
type ListingScrapedEventDTO struct {
	TaskID  uuid.UUID   `json:"task_id"`
	URL     string      `json:"url"`
	Status  string      `json:"status"`
	Listing *ListingDTO `json:"listing,omitempty"`
	Failure *FailureDTO `json:"failure,omitempty"`
}

// SearchCompletedEventDTO - итог обхода выдачи
type SearchCompletedEventDTO struct {
	TaskID       uuid.UUID   `json:"task_id"`
	Site         string      `json:"site"`
	Status       string      `json:"status"`
	URLs         []string    `json:"urls"`
	TotalFound   *int        `json:"total_found"`
	PagesVisited int         `json:"pages_visited"`
	Failure      *FailureDTO `json:"failure,omitempty"`
}

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

func (d ScrapeTaskDTO) toDomain() domain.ScrapeTask {
	return domain.ScrapeTask{TaskID: d.TaskID, URL: d.URL}
}

func (d SearchTaskDTO) toDomain() domain.SearchTask {
	return domain.SearchTask{
		TaskID:   d.TaskID,
		Site:     d.Site,
		MaxPages: d.MaxPages,
		Criteria: domain.SearchCriteria{
			Location:     d.Criteria.Location,
			State:        d.Criteria.State,
			PropertyType: d.Criteria.PropertyType,
			PriceMin:     d.Criteria.PriceMin,
			PriceMax:     d.Criteria.PriceMax,
			RoomsMin:     d.Criteria.RoomsMin,
			RoomsMax:     d.Criteria.RoomsMax,
			BedsMin:      d.Criteria.BedsMin,
			BathsMin:     d.Criteria.BathsMin,
		},
	}
}

func toListingDTO(l *domain.CanonicalListing) *ListingDTO {
	if l == nil {
		return nil
	}
	return &ListingDTO{
		Title:          l.Title,
		Price:          l.Price,
		Location:       l.Location,
		Surface:        l.Surface,
		Rooms:          l.Rooms,
		Features:       nonNil(l.Features),
		DescriptionRaw: l.DescriptionRaw,
		Images:         nonNil(l.Images),
		PropertyType:   l.PropertyType,
		SourceURL:      l.SourceURL,
		Site:           l.Site,
	}
}

func toFailureDTO(f *domain.Failure) *FailureDTO {
	if f == nil {
		return nil
	}
	return &FailureDTO{Kind: string(f.Kind), Site: f.Site, Reason: f.Reason}
}

func newListingScrapedEvent(taskID uuid.UUID, url string, outcome domain.ScrapeOutcome) ListingScrapedEventDTO {
	event := ListingScrapedEventDTO{TaskID: taskID, URL: url}
	if outcome.OK() {
		event.Status = statusSuccess
		event.Listing = toListingDTO(outcome.Listing)
		return event
	}
	event.Status = statusFailed
	event.Failure = toFailureDTO(outcome.Failure)
	if event.Failure == nil {
		// пустой результат не должен уйти как успех
		event.Failure = &FailureDTO{Kind: string(domain.FailureExtraction), Reason: "empty scrape outcome"}
	}
	return event
}

func newSearchCompletedEvent(taskID uuid.UUID, outcome domain.SearchOutcome) SearchCompletedEventDTO {
	event := SearchCompletedEventDTO{
		TaskID:       taskID,
		Site:         outcome.Site,
		Status:       statusSuccess,
		URLs:         nonNil(outcome.URLs),
		TotalFound:   outcome.TotalFound,
		PagesVisited: outcome.PagesVisited,
	}
	if outcome.Failure != nil {
		event.Status = statusFailed
		event.Failure = toFailureDTO(outcome.Failure)
	}
	return event
}

// nonNil - в JSON пустой список, а не null
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
