package rest

import "listing-scraper-service/internal/core/domain"

type ScrapeRequestDTO struct {
	URL string `json:"url"`
}

type SearchRequestDTO struct {
	Site     string      `json:"site"`
	Criteria CriteriaDTO `json:"criteria"`
	MaxPages int         `json:"max_pages"`
}

type CriteriaDTO struct {
	Location     string `json:"location"`
	State        string `json:"state"`
	PropertyType string `json:"property_type"`
	PriceMin     *int   `json:"price_min"`
	PriceMax     *int   `json:"price_max"`
	RoomsMin     *int   `json:"rooms_min"`
	RoomsMax     *int   `json:"rooms_max"`
	BedsMin      *int   `json:"beds_min"`
	BathsMin     *int   `json:"baths_min"`
}

type ListingResponseDTO struct {
	Site           string   `json:"site"`
	SourceURL      string   `json:"source_url"`
	Title          string   `json:"title"`
	Price          string   `json:"price"`
	Location       string   `json:"location"`
	Surface        string   `json:"surface"`
	Rooms          string   `json:"rooms"`
	Features       []string `json:"features"`
	DescriptionRaw string   `json:"description_raw"`
	Images         []string `json:"images"`
	PropertyType   *string  `json:"property_type"`
}

type SearchResponseDTO struct {
	Site         string   `json:"site"`
	URLs         []string `json:"urls"`
	TotalFound   *int     `json:"total_found"`
	PagesVisited int      `json:"pages_visited"`
}

type SitesResponseDTO struct {
	ListingDomains []string `json:"listing_domains"`
	SearchSites    []string `json:"search_sites"`
}

// ErrorResponseDTO - тело любой ошибки; Kind заполнен для неудач парсинга
type ErrorResponseDTO struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Site  string `json:"site,omitempty"`
}

func (c CriteriaDTO) toDomain() domain.SearchCriteria {
	return domain.SearchCriteria{
		Location:     c.Location,
		State:        c.State,
		PropertyType: c.PropertyType,
		PriceMin:     c.PriceMin,
		PriceMax:     c.PriceMax,
		RoomsMin:     c.RoomsMin,
		RoomsMax:     c.RoomsMax,
		BedsMin:      c.BedsMin,
		BathsMin:     c.BathsMin,
	}
}

func toListingResponse(l *domain.CanonicalListing) ListingResponseDTO {
	return ListingResponseDTO{
		Site:           l.Site,
		SourceURL:      l.SourceURL,
		Title:          l.Title,
		Price:          l.Price,
		Location:       l.Location,
		Surface:        l.Surface,
		Rooms:          l.Rooms,
		Features:       orEmpty(l.Features),
		DescriptionRaw: l.DescriptionRaw,
		Images:         orEmpty(l.Images),
		PropertyType:   l.PropertyType,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
