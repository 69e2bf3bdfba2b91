package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-scout/internal/model"
)

// Electronpribor looks up instruments on www.electronpribor.ru. The site
// exposes several search endpoints of varying freshness; they are tried
// in order until one returns listings.
type Electronpribor struct {
	deps Deps
	log  *zap.Logger
}

// NewElectronpribor creates the worker.
func NewElectronpribor(deps Deps) *Electronpribor {
	return &Electronpribor{
		deps: deps,
		log:  zap.L().With(zap.String("source", "electronpribor")),
	}
}

func (s *Electronpribor) Name() string { return "electronpribor" }

// Search implements Source.
func (s *Electronpribor) Search(ctx context.Context, query string) (model.SourceResult, error) {
	q := strings.ReplaceAll(normalizeQuery(query), " ", "+")
	patterns := []string{
		"%s/search/?type_search=catalog&q=%s",
		"%s/search/?q=%s",
		"%s/?s=%s",
	}

	var lastErr error
	answered := false
	for _, p := range patterns {
		searchURL := fmt.Sprintf(p, s.deps.BaseURL, q)
		resp, err := s.deps.Exec.Get(ctx, searchURL)
		if err != nil {
			// A broken endpoint variant, not a missing product; another
			// pattern may still answer.
			s.log.Debug("search endpoint failed", zap.String("url", searchURL), zap.Error(err))
			lastErr = err
			continue
		}
		if !resp.OK() {
			s.log.Debug("search endpoint rejected", zap.String("url", searchURL), zap.Int("status", resp.StatusCode))
			continue
		}
		answered = true

		res, found, err := s.extract(resp.Body, query)
		if err != nil {
			return model.SourceResult{}, err
		}
		if found {
			return res, nil
		}
	}

	if !answered && lastErr != nil {
		return model.SourceResult{}, lastErr
	}
	s.log.Debug("product not found", zap.String("query", query))
	return model.NotFoundResult(), nil
}

// extract pulls listings out of a results page. Markup: ul.pro-list > li
// per product, h4 holds the name, the first noindex paragraph the price,
// a.search-stat-link the product URL.
func (s *Electronpribor) extract(body []byte, query string) (model.SourceResult, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return model.SourceResult{}, false, eris.Wrap(err, "electronpribor: parse html")
	}

	var cands []candidate
	doc.Find("ul.pro-list > li").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.deps.maxResults() {
			return false
		}

		name := strings.Join(strings.Fields(sel.Find("h4").Text()), " ")
		if name == "" || !nameMatch(query, name) {
			return true
		}

		price := parsePrice(sel.Find("noindex").First().Text())
		if price == 0 {
			price = detectStatus(sel.Text())
		}
		if price == 0 {
			// Listed with no price and no status wording: the site does
			// this for items it no longer stocks.
			price = priceDiscontinued
		}

		url, _ := sel.Find("a.search-stat-link").First().Attr("href")
		if strings.HasPrefix(url, "/") {
			url = s.deps.BaseURL + url
		}

		cands = append(cands, candidate{name: name, price: price, url: url})
		return true
	})

	best, ok := pickBest(cands)
	if !ok {
		return model.SourceResult{}, false, nil
	}
	s.log.Debug("product matched",
		zap.String("query", query),
		zap.String("found", best.name),
		zap.Float64("price", best.price),
	)
	return best.toResult(), true, nil
}
