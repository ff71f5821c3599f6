package listingscraper

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"listing-scraper-service/internal/adapters/htmldoc"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const jsonLDScript = "script[type='application/ld+json']"

// типы schema.org, которые описывают сам объект недвижимости
var listingLDTypes = map[string]bool{
	"Product":               true,
	"RealEstateListing":     true,
	"Offer":                 true,
	"Residence":             true,
	"SingleFamilyResidence": true,
	"House":                 true,
	"Apartment":             true,
}

var residenceLDTypes = map[string]bool{
	"Residence":             true,
	"SingleFamilyResidence": true,
	"House":                 true,
	"Apartment":             true,
}

var pricePrinter = message.NewPrinter(language.AmericanEnglish)

type ldNode map[string]any

// extractJSONLD ищет первый блок JSON-LD, описывающий объявление.
// Битые блоки пропускаются. Запись принимается, если в ней есть название или описание;
// заголовок и цену дальше все равно проверяет общий алгоритм.
func extractJSONLD(ctx context.Context, doc *goquery.Document, base *url.URL, upgrade *strings.Replacer) (domain.CanonicalListing, bool) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "JSONLDExtractor"})

	var result domain.CanonicalListing
	found := false

	doc.Find(jsonLDScript).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			logger.Debug("Skipping malformed JSON-LD block", port.Fields{"index": i, "error": err.Error()})
			return true
		}

		for _, node := range ldCandidates(payload) {
			listing := node.toListing(base, upgrade)
			if listing.Title != "" || listing.DescriptionRaw != "" {
				result, found = listing, true
				return false
			}
		}
		return true
	})

	return result, found
}

// ldCandidates раскрывает массивы и @graph и оставляет только узлы подходящих типов.
// Offer с itemOffered превращается в описываемый объект, у которого offers - сам Offer.
func ldCandidates(v any) []ldNode {
	var out []ldNode
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = append(out, ldCandidates(item)...)
		}
	case map[string]any:
		node := ldNode(t)
		if graph, ok := t["@graph"]; ok {
			out = append(out, ldCandidates(graph)...)
		}
		if !node.hasAnyType(listingLDTypes) {
			return out
		}
		if node.hasAnyType(map[string]bool{"Offer": true}) {
			if item := node.child("itemOffered"); item != nil {
				merged := ldNode{}
				for k, val := range item {
					merged[k] = val
				}
				if _, ok := merged["offers"]; !ok {
					merged["offers"] = map[string]any(node)
				}
				out = append(out, merged)
				return out
			}
		}
		out = append(out, node)
	}
	return out
}

func (n ldNode) types() []string {
	switch t := n["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (n ldNode) hasAnyType(set map[string]bool) bool {
	for _, t := range n.types() {
		if set[t] {
			return true
		}
	}
	return false
}

// child возвращает вложенный объект; для массива - первый объект в нем
func (n ldNode) child(key string) ldNode {
	switch t := n[key].(type) {
	case map[string]any:
		return ldNode(t)
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return ldNode(m)
			}
		}
	}
	return nil
}

func (n ldNode) str(key string) string {
	if n == nil {
		return ""
	}
	return ldScalar(n[key])
}

// subject - объект недвижимости внутри RealEstateListing
func (n ldNode) subject() ldNode {
	for _, key := range []string{"mainEntity", "about", "itemOffered"} {
		if c := n.child(key); c != nil {
			return c
		}
	}
	return nil
}

// lookup ищет поле сначала в самом узле, затем в описываемом объекте
func (n ldNode) lookup(key string) any {
	if v, ok := n[key]; ok && v != nil {
		return v
	}
	if s := n.subject(); s != nil {
		return s[key]
	}
	return nil
}

func (n ldNode) toListing(base *url.URL, upgrade *strings.Replacer) domain.CanonicalListing {
	listing := domain.CanonicalListing{
		Title:          htmldoc.CleanText(n.str("name")),
		DescriptionRaw: htmldoc.CleanText(n.str("description")),
		Price:          n.price(),
		Location:       ldAddress(n.lookup("address")),
		Surface:        ldFloorSize(n.lookup("floorSize")),
		Rooms:          n.rooms(),
		Features:       ldAmenities(n.lookup("amenityFeature")),
	}

	images := htmldoc.NewImageCollector(base, upgrade)
	for _, img := range ldImages(n.lookup("image")) {
		images.Add(img)
	}
	listing.Images = images.Images()

	if pt := n.propertyType(); pt != "" {
		listing.PropertyType = &pt
	}
	return listing
}

func (n ldNode) price() string {
	offer := n.child("offers")
	if offer == nil {
		if s := n.subject(); s != nil {
			offer = s.child("offers")
		}
	}

	var amount any
	currency := ""
	if offer != nil {
		amount = offer["price"]
		currency = offer.str("priceCurrency")
		if amount == nil {
			if spec := offer.child("priceSpecification"); spec != nil {
				amount = spec["price"]
				currency = spec.str("priceCurrency")
			}
		}
	}
	if amount == nil {
		amount = n["price"]
	}
	return formatPrice(amount, currency)
}

func (n ldNode) rooms() string {
	beds := ldScalar(n.lookup("numberOfBedrooms"))
	baths := ""
	for _, key := range []string{"numberOfBathroomsTotal", "numberOfBathrooms", "numberOfFullBathrooms"} {
		if baths = ldScalar(n.lookup(key)); baths != "" {
			break
		}
	}
	if rooms := bedsBaths(beds, baths); rooms != "" {
		return rooms
	}
	return ldScalar(n.lookup("numberOfRooms"))
}

func (n ldNode) propertyType() string {
	candidates := []ldNode{n}
	if s := n.subject(); s != nil {
		candidates = append(candidates, s)
	}
	for _, c := range candidates {
		for _, t := range c.types() {
			if residenceLDTypes[t] {
				return splitCamel(t)
			}
		}
	}
	return ""
}

// ldScalar приводит строку или число JSON к строке
func ldScalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		// QuantitativeValue
		return ldScalar(t["value"])
	}
	return ""
}

func formatPrice(amount any, currency string) string {
	var value float64
	switch t := amount.(type) {
	case float64:
		value = t
	case string:
		cleaned := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(t))
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			// цена уже отформатирована сайтом
			return htmldoc.CleanText(t)
		}
		value = f
	default:
		return ""
	}
	if value <= 0 {
		return ""
	}

	var number string
	if value == math.Trunc(value) {
		number = pricePrinter.Sprintf("%d", int64(value))
	} else {
		number = pricePrinter.Sprintf("%.2f", value)
	}

	switch strings.ToUpper(currency) {
	case "", "USD":
		return "$" + number
	case "EUR":
		return "€ " + number
	default:
		return number + " " + strings.ToUpper(currency)
	}
}

func ldAddress(v any) string {
	switch t := v.(type) {
	case string:
		return htmldoc.CleanText(t)
	case map[string]any:
		addr := ldNode(t)
		var parts []string
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if s := addr.str(key); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func ldFloorSize(v any) string {
	value := ldScalar(v)
	if value == "" {
		return ""
	}
	unit := "sqft"
	if m, ok := v.(map[string]any); ok {
		node := ldNode(m)
		switch strings.ToUpper(node.str("unitCode")) {
		case "MTK":
			unit = "m²"
		case "FTK", "":
			if text := strings.ToLower(node.str("unitText")); strings.Contains(text, "m") && !strings.Contains(text, "ft") {
				unit = "m²"
			}
		}
	}
	return value + " " + unit
}

func ldImages(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case map[string]any:
		node := ldNode(t)
		if u := node.str("url"); u != "" {
			return []string{u}
		}
		if u := node.str("contentUrl"); u != "" {
			return []string{u}
		}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, ldImages(item)...)
		}
		return out
	}
	return nil
}

func ldAmenities(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		node := ldNode(m)
		name := htmldoc.CleanText(node.str("name"))
		if name == "" {
			continue
		}
		// value=true у булевых удобств не несет информации
		if value := node.str("value"); value != "" {
			name += ": " + value
		}
		out = append(out, name)
	}
	return out
}

// splitCamel: "SingleFamilyResidence" -> "Single Family Residence"
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
