package domain

import "github.com/google/uuid"

// ScrapeTask - задача на парсинг одного объявления, приходит из очереди
type ScrapeTask struct {
	TaskID uuid.UUID
	URL    string

	// LastAttempt - повторов больше не будет, временный сбой надо публиковать как результат
	LastAttempt bool
}

// SearchTask - задача на обход выдачи одного сайта
type SearchTask struct {
	TaskID   uuid.UUID
	Site     string
	Criteria SearchCriteria
	MaxPages int

	LastAttempt bool
}
