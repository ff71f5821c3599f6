package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/contracts"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys []string
	msgs []amqp.Publishing
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	p.keys = append(p.keys, routingKey)
	p.msgs = append(p.msgs, msg)
	return nil
}

// validatePublished проверяет, что сообщение проходит собственную схему
func validatePublished(t *testing.T, msg amqp.Publishing) {
	t.Helper()
	eventType, _ := msg.Headers[constants.HeaderEventType].(string)
	version, _ := msg.Headers[constants.HeaderEventVersion].(string)
	require.NoError(t, contracts.ValidateEvent(eventType, version, msg.Body), string(msg.Body))
}

func noopLogger() port.LoggerPort {
	return contextkeys.LoggerFromContext(context.Background())
}

func TestAdapters_RejectBadConstruction(t *testing.T) {
	_, err := NewScrapeTaskQueueAdapter(nil, "k")
	assert.Error(t, err)
	_, err = NewListingResultsAdapter(&recordingPublisher{}, "")
	assert.Error(t, err)
	_, err = NewSearchReporterAdapter(nil, "")
	assert.Error(t, err)
}

func TestScrapeTaskQueue_PublishesValidEventWithTrace(t *testing.T) {
	pub := &recordingPublisher{}
	adapter, err := NewScrapeTaskQueueAdapter(pub, constants.RoutingKeyScrapeTasks)
	require.NoError(t, err)

	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-42")
	task := domain.ScrapeTask{TaskID: uuid.New(), URL: "https://www.immobiliare.it/annunci/1/"}
	require.NoError(t, adapter.Enqueue(ctx, task))

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, constants.RoutingKeyScrapeTasks, pub.keys[0])
	assert.Equal(t, "trace-42", msg.Headers[constants.HeaderTraceID])
	assert.Equal(t, constants.EventScrapeTask, msg.Headers[constants.HeaderEventType])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	validatePublished(t, msg)

	var dto ScrapeTaskDTO
	require.NoError(t, json.Unmarshal(msg.Body, &dto))
	assert.Equal(t, task, dto.toDomain())
}

func TestScrapeTaskQueue_PublishErrorIsWrapped(t *testing.T) {
	adapter, _ := NewScrapeTaskQueueAdapter(&recordingPublisher{err: errors.New("channel closed")}, "k")
	err := adapter.Enqueue(context.Background(), domain.ScrapeTask{URL: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestListingResults_SuccessAndFailureEvents(t *testing.T) {
	pub := &recordingPublisher{}
	adapter, err := NewListingResultsAdapter(pub, constants.RoutingKeyListingResults)
	require.NoError(t, err)
	taskID := uuid.New()

	villa := "Villa"
	require.NoError(t, adapter.Publish(context.Background(), taskID, "https://www.casa.it/immobili/1/",
		domain.Succeeded(&domain.CanonicalListing{Title: "Villa al mare", Price: "€ 350.000", PropertyType: &villa})))
	require.NoError(t, adapter.Publish(context.Background(), taskID, "https://www.casa.it/immobili/2/",
		domain.Failed(domain.FailureBlocked, "casa.it", domain.BlockedMessage("casa.it"))))

	require.Len(t, pub.msgs, 2)
	for _, msg := range pub.msgs {
		validatePublished(t, msg)
	}

	var ok ListingScrapedEventDTO
	require.NoError(t, json.Unmarshal(pub.msgs[0].Body, &ok))
	assert.Equal(t, "success", ok.Status)
	require.NotNil(t, ok.Listing)
	assert.Equal(t, "Villa al mare", ok.Listing.Title)
	assert.Equal(t, []string{}, ok.Listing.Images)
	assert.Nil(t, ok.Failure)

	var failed ListingScrapedEventDTO
	require.NoError(t, json.Unmarshal(pub.msgs[1].Body, &failed))
	assert.Equal(t, "failed", failed.Status)
	require.NotNil(t, failed.Failure)
	assert.Equal(t, "blocked", failed.Failure.Kind)
	assert.Nil(t, failed.Listing)
}

func TestSearchReporter_PublishesReport(t *testing.T) {
	pub := &recordingPublisher{}
	adapter, err := NewSearchReporterAdapter(pub, constants.RoutingKeySearchResults)
	require.NoError(t, err)

	outcome := domain.SearchOutcome{Site: "immobiliare", URLs: []string{"a", "b"}, TotalFound: domain.IntPtr(1234), PagesVisited: 2}
	require.NoError(t, adapter.ReportSearch(context.Background(), uuid.New(), outcome))

	empty := domain.SearchOutcome{Site: "realtor", Failure: &domain.Failure{Kind: domain.FailureExtraction, Reason: "realtor: no listing URLs found on the results page"}}
	require.NoError(t, adapter.ReportSearch(context.Background(), uuid.New(), empty))

	require.Len(t, pub.msgs, 2)
	validatePublished(t, pub.msgs[0])
	validatePublished(t, pub.msgs[1])

	var report SearchCompletedEventDTO
	require.NoError(t, json.Unmarshal(pub.msgs[1].Body, &report))
	assert.Equal(t, "failed", report.Status)
	assert.Equal(t, []string{}, report.URLs)
}

func TestSearchTaskDTO_ToDomain(t *testing.T) {
	body := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","site":"realtor","max_pages":2,
		"criteria":{"location":"Austin","state":"TX","beds_min":3,"price_max":500000}}`
	var dto SearchTaskDTO
	require.NoError(t, json.Unmarshal([]byte(body), &dto))

	task := dto.toDomain()
	assert.Equal(t, "realtor", task.Site)
	assert.Equal(t, 2, task.MaxPages)
	assert.Equal(t, "Austin", task.Criteria.Location)
	assert.Equal(t, "TX", task.Criteria.State)
	assert.Equal(t, domain.IntPtr(3), task.Criteria.BedsMin)
	assert.Equal(t, domain.IntPtr(500000), task.Criteria.PriceMax)
	assert.Nil(t, task.Criteria.PriceMin)
}

// --- входящие сообщения ---

type recordingScrapeUC struct {
	tasks   []domain.ScrapeTask
	traceID string
	err     error
}

func (u *recordingScrapeUC) Execute(ctx context.Context, task domain.ScrapeTask) error {
	u.tasks = append(u.tasks, task)
	u.traceID = contextkeys.TraceIDFromContext(ctx)
	return u.err
}

type recordingSearchUC struct {
	tasks []domain.SearchTask
	err   error
}

func (u *recordingSearchUC) Execute(ctx context.Context, task domain.SearchTask) error {
	u.tasks = append(u.tasks, task)
	return u.err
}

func delivery(body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{Body: []byte(body), Headers: headers, DeliveryTag: 7}
}

const validScrapeBody = `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","url":"https://www.subito.it/appartamenti/x.htm"}`

func TestScrapeConsumer_ValidMessageCallsUseCase(t *testing.T) {
	uc := &recordingScrapeUC{}
	adapter := &ScrapeTasksConsumerAdapter{useCase: uc, logger: noopLogger()}

	err := adapter.messageHandler(delivery(validScrapeBody, amqp.Table{
		constants.HeaderTraceID:      "from-header",
		constants.HeaderEventType:    constants.EventScrapeTask,
		constants.HeaderEventVersion: constants.EventVersionV1,
	}))
	require.NoError(t, err)
	require.Len(t, uc.tasks, 1)
	assert.Equal(t, "https://www.subito.it/appartamenti/x.htm", uc.tasks[0].URL)
	assert.Equal(t, "from-header", uc.traceID)
}

func TestScrapeConsumer_MissingHeadersDefaultToExpectedEvent(t *testing.T) {
	uc := &recordingScrapeUC{}
	adapter := &ScrapeTasksConsumerAdapter{useCase: uc, logger: noopLogger()}

	require.NoError(t, adapter.messageHandler(delivery(validScrapeBody, nil)))
	require.Len(t, uc.tasks, 1)
	assert.NotEmpty(t, uc.traceID, "trace id is generated when absent")
}

func TestScrapeConsumer_InvalidMessagesArePermanent(t *testing.T) {
	uc := &recordingScrapeUC{}
	adapter := &ScrapeTasksConsumerAdapter{useCase: uc, logger: noopLogger()}

	for name, d := range map[string]amqp.Delivery{
		"schema":     delivery(`{"url":"x"}`, nil),
		"not json":   delivery(`{`, nil),
		"wrong type": delivery(validScrapeBody, amqp.Table{constants.HeaderEventType: constants.EventSearchTask}),
		"version":    delivery(validScrapeBody, amqp.Table{constants.HeaderEventVersion: "2.0.0"}),
	} {
		err := adapter.messageHandler(d)
		require.Error(t, err, name)
		assert.True(t, rabbitmq_consumer.IsPermanent(err), name)
	}
	assert.Empty(t, uc.tasks)
}

func TestScrapeConsumer_UseCaseErrorIsRetryable(t *testing.T) {
	uc := &recordingScrapeUC{err: errors.New("casa.it: could not load the listing page")}
	adapter := &ScrapeTasksConsumerAdapter{useCase: uc, logger: noopLogger()}

	err := adapter.messageHandler(delivery(validScrapeBody, nil))
	require.Error(t, err)
	assert.False(t, rabbitmq_consumer.IsPermanent(err))
}

func TestScrapeConsumer_MarksLastAttemptFromDeathCount(t *testing.T) {
	cfg := rabbitmq_consumer.ConsumerConfig{
		QueueName:            constants.QueueScrapeTasks,
		EnableRetryMechanism: true,
		MaxRetries:           constants.MaxRetries,
	}
	uc := &recordingScrapeUC{}
	adapter := &ScrapeTasksConsumerAdapter{useCase: uc, logger: noopLogger(), lastAttempt: newLastAttemptFunc(cfg)}

	withDeaths := func(count int64) amqp.Delivery {
		return delivery(validScrapeBody, amqp.Table{"x-death": []interface{}{
			amqp.Table{"queue": constants.QueueScrapeTasks, "count": count},
		}})
	}

	require.NoError(t, adapter.messageHandler(delivery(validScrapeBody, nil)))
	require.NoError(t, adapter.messageHandler(withDeaths(2)))
	require.NoError(t, adapter.messageHandler(withDeaths(3)))
	require.Len(t, uc.tasks, 3)
	assert.False(t, uc.tasks[0].LastAttempt)
	assert.False(t, uc.tasks[1].LastAttempt)
	assert.True(t, uc.tasks[2].LastAttempt)

	// без механизма повторов каждая доставка последняя
	noRetry := newLastAttemptFunc(rabbitmq_consumer.ConsumerConfig{QueueName: constants.QueueScrapeTasks})
	assert.True(t, noRetry.check(delivery(validScrapeBody, nil)))
	assert.False(t, lastAttemptFunc(nil).check(delivery(validScrapeBody, nil)))
}

func TestSearchConsumer_ValidAndInvalid(t *testing.T) {
	uc := &recordingSearchUC{}
	adapter := &SearchTasksConsumerAdapter{useCase: uc, logger: noopLogger()}

	ok := `{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","site":"immobiliare","criteria":{"location":"Milano"}}`
	require.NoError(t, adapter.messageHandler(delivery(ok, nil)))
	require.Len(t, uc.tasks, 1)
	assert.Equal(t, "Milano", uc.tasks[0].Criteria.Location)

	err := adapter.messageHandler(delivery(`{"task_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7"}`, nil))
	assert.True(t, rabbitmq_consumer.IsPermanent(err))
	assert.Len(t, uc.tasks, 1)
}

// --- мост логгера ---

type fieldsRecorder struct {
	last port.Fields
	err  error
}

func (r *fieldsRecorder) Info(msg string, fields port.Fields)  { r.last = fields }
func (r *fieldsRecorder) Warn(msg string, fields port.Fields)  { r.last = fields }
func (r *fieldsRecorder) Debug(msg string, fields port.Fields) { r.last = fields }
func (r *fieldsRecorder) Error(msg string, err error, fields port.Fields) {
	r.last, r.err = fields, err
}
func (r *fieldsRecorder) WithFields(fields port.Fields) port.LoggerPort { return r }

func TestPkgLoggerBridge_ConvertsPairs(t *testing.T) {
	rec := &fieldsRecorder{}
	bridge := NewPkgLoggerBridge(rec)

	bridge.Info("Declaring queue", "name", "scrape_tasks", "durable", true)
	assert.Equal(t, port.Fields{"name": "scrape_tasks", "durable": true}, rec.last)

	bridge.Warn("odd", "dangling")
	assert.Equal(t, port.Fields{"dangling": "!MISSING"}, rec.last)

	bridge.Debug("non-string key", 42, "v")
	assert.Equal(t, port.Fields{"42": "v"}, rec.last)

	boom := errors.New("boom")
	bridge.Error(boom, "failed", "queue", "q")
	assert.Equal(t, boom, rec.err)
	assert.Equal(t, port.Fields{"queue": "q"}, rec.last)
}
