package source

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/price-scout/internal/model"
)

// sentinel prices used between extraction and classification, mirroring
// the storefronts' three "listed but no price" conventions.
const (
	priceNotFound     = 0.0
	priceDiscontinued = -1.0
	priceOnRequest    = -2.0
)

// normalizeQuery trims a catalog name down to the part the site search
// understands: everything after the first comma is a human annotation
// ("Fluke TiX501, тепловизор" -> "Fluke TiX501").
func normalizeQuery(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	return strings.Join(strings.Fields(name), " ")
}

var (
	priceDigits = regexp.MustCompile(`(\d[\d\s\x{00a0}]*(?:[.,]\d{1,2})?)`)
	// Catalog articles look like "АКИП-4204/1" or "С1-64": a letter block,
	// a dash or slash, digit groups.
	articleRe = regexp.MustCompile(`(?i)^([А-ЯA-ZЁ]+(?:[0-9]+)?[-/][0-9]+(?:/[0-9]+)?)`)
)

// parsePrice extracts a numeric amount from a price fragment such as
// "49 000 ₽" or "1 234,50 руб.". Returns 0 when no amount is present.
func parsePrice(text string) float64 {
	// Only the part before the first currency marker counts; listings
	// often append old prices or per-unit text after it.
	lower := strings.ToLower(text)
	if i := strings.Index(lower, "₽"); i >= 0 {
		text = text[:i]
	} else if i := strings.Index(lower, "руб"); i >= 0 {
		text = text[:i]
	}

	m := priceDigits.FindString(text)
	if m == "" {
		return 0
	}
	m = strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(m)
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// detectStatus classifies a listing's text when no numeric price was
// extracted: "по запросу" means the price exists but is quoted per
// customer; discontinued wording means the item is no longer produced.
func detectStatus(text string) float64 {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "по запросу") || strings.Contains(t, "цену уточняйте"):
		return priceOnRequest
	case strings.Contains(t, "снят с производства") ||
		strings.Contains(t, "поставка прекращена") ||
		strings.Contains(t, "архив"):
		return priceDiscontinued
	default:
		return priceNotFound
	}
}

// article extracts the catalog article from a product name, falling back
// to the first word. Cyrillic "а" and Latin "a" are unified because both
// appear interchangeably in supplier catalogs.
func article(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	code := ""
	if m := articleRe.FindString(strings.ReplaceAll(name, " ", "")); m != "" {
		code = m
	} else if fields := strings.Fields(name); len(fields) > 0 {
		code = fields[0]
	}
	return strings.NewReplacer(" ", "", "-", "", "a", "а").Replace(strings.ToLower(code))
}

// nameMatch reports whether a found listing answers the query: the
// catalog articles must match exactly, and when the query carries a
// modification suffix ("TG"), the listing must mention it.
func nameMatch(query, found string) bool {
	qa, fa := article(query), article(found)
	if qa == "" || fa == "" || qa != fa {
		return false
	}

	qFields := strings.Fields(normalizeQuery(query))
	if len(qFields) >= 2 {
		mod := strings.ToLower(qFields[1])
		if mod != "" && !strings.Contains(strings.ToLower(found), mod) {
			return false
		}
	}
	return true
}

// similarity is a token-overlap score in [0,1] between a query and a
// listing name, used by sources whose search is fuzzier than article
// lookup.
func similarity(query, found string) float64 {
	qt := tokens(query)
	ft := tokens(found)
	if len(qt) == 0 || len(ft) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ft))
	for _, t := range ft {
		set[t] = struct{}{}
	}
	matched := 0
	for _, t := range qt {
		if _, ok := set[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(qt))
}

func tokens(s string) []string {
	return strings.Fields(strings.ToLower(normalizeQuery(s)))
}

// candidate is one extracted listing before classification.
type candidate struct {
	name  string
	price float64 // positive, or a sentinel
	url   string
}

// toResult converts a candidate to the recorded outcome.
func (c candidate) toResult() model.SourceResult {
	res := model.SourceResult{
		Status: model.StatusForPrice(c.price),
		Name:   c.name,
		URL:    c.url,
	}
	if res.Status == model.StatusAvailable {
		res.Price = c.price
	}
	return res
}

// pickBest chooses among matching candidates with the priority priced >
// on request > discontinued. Returns false when the slice is empty.
func pickBest(cands []candidate) (candidate, bool) {
	var onRequest, discontinued *candidate
	for i := range cands {
		c := cands[i]
		switch {
		case c.price > 0:
			return c, true
		case c.price == priceOnRequest && onRequest == nil:
			onRequest = &cands[i]
		case c.price == priceDiscontinued && discontinued == nil:
			discontinued = &cands[i]
		}
	}
	if onRequest != nil {
		return *onRequest, true
	}
	if discontinued != nil {
		return *discontinued, true
	}
	return candidate{}, false
}
