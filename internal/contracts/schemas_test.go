package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyFromPath(t *testing.T) {
	assert.Equal(t, "ScrapeTaskEvent/1.0.0", generateKeyFromPath("events/scrape-task/v1.json"))
	assert.Equal(t, "ListingScrapedEvent/2.0.0", generateKeyFromPath("events/listing-scraped/v2.json"))
	assert.Equal(t, "", generateKeyFromPath("events/failure.json"))
	assert.Equal(t, "", generateKeyFromPath("events/a/b/v1.json"))
}

func TestLoad_RegistersAllEvents(t *testing.T) {
	require.NoError(t, Load())
	assert.ElementsMatch(t, []string{
		"ScrapeTaskEvent/1.0.0",
		"SearchTaskEvent/1.0.0",
		"ListingScrapedEvent/1.0.0",
		"SearchCompletedEvent/1.0.0",
	}, Registered())
}

func TestValidateEvent_ScrapeTask(t *testing.T) {
	ok := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":"https://www.casa.it/immobili/1/"}`
	require.NoError(t, ValidateEvent("ScrapeTaskEvent", "1.0.0", []byte(ok)))

	for name, body := range map[string]string{
		"missing url": `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7"}`,
		"bad uuid":    `{"task_id":"nope","url":"https://x"}`,
		"extra field": `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":"https://x","x":1}`,
		"not json":    `{"task_id":`,
		"empty url":   `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":""}`,
	} {
		assert.Error(t, ValidateEvent("ScrapeTaskEvent", "1.0.0", []byte(body)), name)
	}
}

func TestValidateEvent_SearchTask(t *testing.T) {
	ok := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","site":"immobiliare","max_pages":2,
		"criteria":{"location":"Milano","price_min":100000,"price_max":null,"rooms_min":2}}`
	require.NoError(t, ValidateEvent("SearchTaskEvent", "1.0.0", []byte(ok)))

	negative := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","site":"realtor","criteria":{"beds_min":-1}}`
	assert.Error(t, ValidateEvent("SearchTaskEvent", "1.0.0", []byte(negative)))
}

func TestValidateEvent_ListingScrapedRequiresExactlyOneVariant(t *testing.T) {
	success := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":"u","status":"success",
		"listing":{"title":"Villa","price":"€ 1","images":[],"features":[]}}`
	require.NoError(t, ValidateEvent("ListingScrapedEvent", "1.0.0", []byte(success)))

	failure := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":"u","status":"failed",
		"failure":{"kind":"blocked","reason":"casa.it: blocked"}}`
	require.NoError(t, ValidateEvent("ListingScrapedEvent", "1.0.0", []byte(failure)))

	both := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":"u","status":"failed",
		"listing":{"title":"Villa","price":"€ 1","images":[],"features":[]},
		"failure":{"kind":"blocked","reason":"x"}}`
	assert.Error(t, ValidateEvent("ListingScrapedEvent", "1.0.0", []byte(both)))

	badKind := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":"u","status":"failed",
		"failure":{"kind":"timeout","reason":"x"}}`
	assert.Error(t, ValidateEvent("ListingScrapedEvent", "1.0.0", []byte(badKind)))
}

func TestValidateEvent_UnknownSchema(t *testing.T) {
	err := ValidateEvent("ScrapeTaskEvent", "9.0.0", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
