package constants

// Exchange
const (
	ScraperExchange     = "scraper_exchange"
	ScraperExchangeType = "direct"
)

// Queues
const (
	QueueScrapeTasks = "scrape_tasks"
	QueueSearchTasks = "search_tasks"
)

// Routing Keys
const (
	RoutingKeyScrapeTasks    = "scraper.listing.tasks"
	RoutingKeySearchTasks    = "scraper.search.tasks"
	RoutingKeyListingResults = "scraper.listing.results"
	RoutingKeySearchResults  = "scraper.search.results"
)

// DLX / DLQ для сообщений, исчерпавших ретраи
const (
	FinalDLXExchange   = "scrape_tasks_final_dlx"
	FinalDLQ           = "scrape_tasks_final_dlq"
	FinalDLQRoutingKey = "scrape_tasks.dlq.key"

	FinalDLXExchangeForSearchTasks   = "search_tasks_final_dlx"
	FinalDLQForSearchTasks           = "search_tasks_final_dlq"
	FinalDLQRoutingKeyForSearchTasks = "search_tasks.dlq.key"
)

const (
	RetryTTLMillis = 10000
	MaxRetries     = 3
)

// Заголовки сообщений
const (
	HeaderTraceID      = "x-trace-id"
	HeaderEventType    = "event-type"
	HeaderEventVersion = "event-version"
)

// Типы событий
const (
	EventScrapeTask      = "ScrapeTaskEvent"
	EventSearchTask      = "SearchTaskEvent"
	EventListingScraped  = "ListingScrapedEvent"
	EventSearchCompleted = "SearchCompletedEvent"
	EventVersionV1       = "1.0.0"
)
