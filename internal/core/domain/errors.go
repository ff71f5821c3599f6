package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnknownSearchSite - для сайта нет краулера выдачи
var ErrUnknownSearchSite = errors.New("unknown search site")

// FetchError - транспортная ошибка после исчерпания всех попыток
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// BlockedError - сайт явно отказал в доступе (HTTP 403 или страница блокировки)
type BlockedError struct {
	URL        string
	StatusCode int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request to %s was blocked (status %d)", e.URL, e.StatusCode)
}

// ExtractionError - страница разобрана, но обязательные поля не найдены
type ExtractionError struct {
	Site    string
	Missing []string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: could not extract %s from the page", e.Site, strings.Join(e.Missing, " and "))
}

// IsBlocked определяет, что ошибка означает блокировку со стороны сайта
func IsBlocked(err error) bool {
	if err == nil {
		return false
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return true
	}

	// URL в тексте FetchError может содержать "403" в id объявления, смотрим только на причину
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.StatusCode == http.StatusForbidden {
			return true
		}
		if fetchErr.Err == nil {
			return false
		}
		err = fetchErr.Err
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "403 forbidden") ||
		strings.Contains(msg, "blocked")
}

// BlockedMessage - текст для пользователя при блокировке
func BlockedMessage(site string) string {
	return fmt.Sprintf("%s: access temporarily blocked, try later or use manual input", site)
}
