package usecase

import (
	"context"
	"errors"
	"fmt"

	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
	usecases_port "listing-scraper-service/internal/core/port/usecases"
)

// ProcessSearchTaskUseCase обходит выдачу, ставит найденные ссылки в очередь на парсинг
// и отправляет отчет о поиске
type ProcessSearchTaskUseCase struct {
	searchUC    usecases_port.SearchListingsPort
	scrapeQueue port.ScrapeTaskQueuePort
	reporter    port.SearchReporterPort
}

func NewProcessSearchTaskUseCase(
	searchUC usecases_port.SearchListingsPort,
	scrapeQueue port.ScrapeTaskQueuePort,
	reporter port.SearchReporterPort,
) *ProcessSearchTaskUseCase {
	return &ProcessSearchTaskUseCase{
		searchUC:    searchUC,
		scrapeQueue: scrapeQueue,
		reporter:    reporter,
	}
}

func (uc *ProcessSearchTaskUseCase) Execute(ctx context.Context, task domain.SearchTask) error {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ProcessSearchTask",
		"task_id":  task.TaskID.String(),
		"site":     task.Site,
	})
	ctx = contextkeys.ContextWithLogger(ctx, ucLogger)

	outcome, err := uc.searchUC.Execute(ctx, task.Site, task.Criteria, task.MaxPages)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSearchSite) {
			// повтор не поможет, сообщаем об ошибке в отчете
			ucLogger.Warn("Search task for unknown site", nil)
			outcome = domain.SearchOutcome{
				Site:    task.Site,
				Failure: &domain.Failure{Kind: domain.FailureUnsupported, Site: task.Site, Reason: err.Error()},
			}
			return uc.report(ctx, task, outcome)
		}
		ucLogger.Error("Search failed", err, nil)
		return fmt.Errorf("search task %s failed: %w", task.TaskID, err)
	}

	if outcome.Failure != nil && outcome.Failure.Kind == domain.FailureFetch {
		if !task.LastAttempt {
			ucLogger.Warn("Search fetch failed, task will be retried", port.Fields{"reason": outcome.Failure.Reason})
			return fmt.Errorf("search task %s: %s", task.TaskID, outcome.Failure.Reason)
		}
		ucLogger.Warn("Search fetch failed on the last attempt, reporting failure", port.Fields{"reason": outcome.Failure.Reason})
	}

	enqueued := 0
	for _, url := range outcome.URLs {
		if err := uc.scrapeQueue.Enqueue(ctx, domain.ScrapeTask{TaskID: task.TaskID, URL: url}); err != nil {
			ucLogger.Error("Failed to enqueue scrape task", err, port.Fields{"url": url})
			return fmt.Errorf("CRITICAL: failed to enqueue %s: %w", url, err)
		}
		enqueued++
	}
	ucLogger.Info("Listing URLs enqueued", port.Fields{"count": enqueued, "pages_visited": outcome.PagesVisited})

	return uc.report(ctx, task, outcome)
}

func (uc *ProcessSearchTaskUseCase) report(ctx context.Context, task domain.SearchTask, outcome domain.SearchOutcome) error {
	if err := uc.reporter.ReportSearch(ctx, task.TaskID, outcome); err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to send search report", err, nil)
		return fmt.Errorf("failed to report search task %s: %w", task.TaskID, err)
	}
	return nil
}
