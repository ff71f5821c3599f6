package domain

// DefaultMaxPages - сколько страниц выдачи обходим, если вызывающий не указал
const DefaultMaxPages = 3

// SearchCriteria - набор фильтров поиска. Все поля необязательные:
// nil или пустая строка означают "без фильтра". Каждый краулер
// использует только поддерживаемое им подмножество.
type SearchCriteria struct {
	Location     string
	State        string
	PropertyType string

	PriceMin *int
	PriceMax *int
	RoomsMin *int
	RoomsMax *int
	BedsMin  *int
	BathsMin *int
}

// SearchOutcome - результат обхода выдачи
type SearchOutcome struct {
	Site         string
	URLs         []string // уникальные, в порядке первого появления
	TotalFound   *int     // best-effort, может отсутствовать
	PagesVisited int
	Failure      *Failure
}

// OK - true, если поиск завершился успешно (возможно, с частичным результатом)
func (o SearchOutcome) OK() bool {
	return o.Failure == nil
}

// IntPtr - хелпер для необязательных числовых критериев
func IntPtr(v int) *int {
	return &v
}
