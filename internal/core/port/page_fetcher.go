package port

import "context"

// PageFetcherPort загружает сырой HTML страницы.
// Реализация отвечает за заголовки, таймауты и ретраи.
type PageFetcherPort interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
