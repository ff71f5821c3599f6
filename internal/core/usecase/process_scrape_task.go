package usecase

import (
	"context"
	"fmt"

	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
	usecases_port "listing-scraper-service/internal/core/port/usecases"
)

// ProcessScrapeTaskUseCase обрабатывает задачу из очереди: парсит объявление и публикует результат
type ProcessScrapeTaskUseCase struct {
	scrapeUC    usecases_port.ScrapeListingPort
	resultQueue port.ListingResultsQueuePort
}

func NewProcessScrapeTaskUseCase(scrapeUC usecases_port.ScrapeListingPort, resultQueue port.ListingResultsQueuePort) *ProcessScrapeTaskUseCase {
	return &ProcessScrapeTaskUseCase{
		scrapeUC:    scrapeUC,
		resultQueue: resultQueue,
	}
}

// Execute возвращает ошибку только когда сообщение стоит повторить:
// сбой загрузки (кроме последней попытки) или публикации. Блокировка и неполная страница публикуются как результат.
func (uc *ProcessScrapeTaskUseCase) Execute(ctx context.Context, task domain.ScrapeTask) error {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ProcessScrapeTask",
		"task_id":  task.TaskID.String(),
		"url":      task.URL,
	})
	ctx = contextkeys.ContextWithLogger(ctx, ucLogger)

	outcome, err := uc.scrapeUC.Execute(ctx, task.URL)
	if err != nil {
		ucLogger.Error("Failed to scrape listing", err, nil)
		return fmt.Errorf("failed to scrape %s: %w", task.URL, err)
	}

	// транспортный сбой мог быть временным, отдаем сообщение на повтор.
	// На последней попытке публикуем неудачу, иначе получатель результатов о задаче не узнает
	if outcome.Failure != nil && outcome.Failure.Kind == domain.FailureFetch {
		if !task.LastAttempt {
			ucLogger.Warn("Fetch failed, task will be retried", port.Fields{"reason": outcome.Failure.Reason})
			return fmt.Errorf("fetch failed for %s: %s", task.URL, outcome.Failure.Reason)
		}
		ucLogger.Warn("Fetch failed on the last attempt, publishing failure", port.Fields{"reason": outcome.Failure.Reason})
	}

	if err := uc.resultQueue.Publish(ctx, task.TaskID, task.URL, outcome); err != nil {
		ucLogger.Error("Failed to publish scrape result", err, nil)
		return fmt.Errorf("CRITICAL: failed to publish result for %s: %w", task.URL, err)
	}

	ucLogger.Info("Scrape result published", port.Fields{"ok": outcome.OK()})
	return nil
}
