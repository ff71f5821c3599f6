package domain

// MaxImages - максимальное количество изображений в одной карточке объекта
const MaxImages = 10

// CanonicalListing - нормализованное представление объявления, одинаковое для всех сайтов
type CanonicalListing struct {
	Site      string
	SourceURL string

	Title    string
	Price    string // строка для отображения, валюту сайты форматируют по-разному
	Location string
	Surface  string // площадь с единицей измерения: "120 m²", "1800 sqft"
	Rooms    string

	Features       []string
	DescriptionRaw string
	Images         []string
	PropertyType   *string
}

// FailureKind классифицирует причину неудачи, чтобы вызывающая сторона
// могла выбрать между "повторить позже" и "ввести данные вручную"
type FailureKind string

const (
	FailureBlocked     FailureKind = "blocked"
	FailureFetch       FailureKind = "fetch"
	FailureExtraction  FailureKind = "extraction"
	FailureUnsupported FailureKind = "unsupported"
)

// Failure - неуспешный вариант результата. Reason пригоден для показа пользователю.
type Failure struct {
	Kind   FailureKind
	Site   string
	Reason string
}

// Retryable сообщает, имеет ли смысл повторять операцию позже
func (f *Failure) Retryable() bool {
	return f != nil && (f.Kind == FailureFetch || f.Kind == FailureBlocked)
}

// ScrapeOutcome - результат парсинга одного объявления: либо Listing, либо Failure
type ScrapeOutcome struct {
	Listing *CanonicalListing
	Failure *Failure
}

// Succeeded оборачивает валидное объявление в успешный результат
func Succeeded(listing *CanonicalListing) ScrapeOutcome {
	return ScrapeOutcome{Listing: listing}
}

// Failed создает неуспешный результат
func Failed(kind FailureKind, site, reason string) ScrapeOutcome {
	return ScrapeOutcome{Failure: &Failure{Kind: kind, Site: site, Reason: reason}}
}

// OK - true для успешного результата с пригодным объявлением
func (o ScrapeOutcome) OK() bool {
	return o.Failure == nil && o.Listing.IsUsable()
}

// IsUsable проверяет инвариант: объявление пригодно, только если есть заголовок и цена
func (l *CanonicalListing) IsUsable() bool {
	return len(l.MissingRequired()) == 0
}

// MissingRequired возвращает имена обязательных полей, которые не удалось заполнить
func (l *CanonicalListing) MissingRequired() []string {
	var missing []string
	if l == nil || l.Title == "" {
		missing = append(missing, "title")
	}
	if l == nil || l.Price == "" {
		missing = append(missing, "price")
	}
	return missing
}
