// Package htmldoc загружает HTML в дерево goquery и содержит
// общие помощники нормализации, которыми пользуются все адаптеры сайтов.
package htmldoc

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	numberRe = regexp.MustCompile(`[0-9.,]+`)
)

// Parse строит дерево документа из сырого HTML
func Parse(html []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("htmldoc: failed to parse document: %w", err)
	}
	return doc, nil
}

// CleanText обрезает пробелы по краям и схлопывает внутренние последовательности пробелов в один.
// Пробелом считается все, что считает unicode.IsSpace, включая &nbsp; (U+00A0).
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

// ExtractNumber возвращает первую последовательность цифр и разделителей ("Superficie: 120 m²" -> "120").
// Последовательности из одних разделителей пропускаются.
func ExtractNumber(s string) string {
	for _, candidate := range numberRe.FindAllString(s, -1) {
		if strings.ContainsAny(candidate, "0123456789") {
			return candidate
		}
	}
	return ""
}

// FirstText возвращает очищенный текст первого непустого совпадения среди селекторов
func FirstText(sel *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		var found string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = CleanText(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// FirstAttr возвращает первое непустое значение атрибута среди селекторов
func FirstAttr(sel *goquery.Selection, attr string, selectors ...string) string {
	for _, selector := range selectors {
		var found string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = strings.TrimSpace(s.AttrOr(attr, ""))
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// Texts собирает очищенные непустые тексты всех совпадений в порядке документа
func Texts(sel *goquery.Selection, selector string) []string {
	var out []string
	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := CleanText(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// FilterByLabel ищет первый элемент, собственный текст которого содержит одну из подстрок (без учета регистра).
// Классы списков характеристик меняются чаще всего, поэтому сопоставляем по подписи.
func FilterByLabel(items []string, needles ...string) string {
	for _, item := range items {
		lower := strings.ToLower(item)
		for _, needle := range needles {
			if strings.Contains(lower, strings.ToLower(needle)) {
				return item
			}
		}
	}
	return ""
}

// ValueAfterLabel возвращает часть строки после первого двоеточия ("Tipologia: Villa" -> "Villa")
func ValueAfterLabel(item string) string {
	if idx := strings.Index(item, ":"); idx >= 0 {
		return CleanText(item[idx+1:])
	}
	return CleanText(item)
}

// AbsoluteURL приводит href к абсолютному виду относительно base
func AbsoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// StripQuery отбрасывает query string и фрагмент
func StripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
