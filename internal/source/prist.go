package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-scout/internal/model"
)

// Prist looks up instruments on prist.ru, a Bitrix storefront. Listings
// carry strict catalog articles, so matching is article-exact like
// electronpribor, including the modification-suffix check.
type Prist struct {
	deps Deps
	log  *zap.Logger
}

// NewPrist creates the worker.
func NewPrist(deps Deps) *Prist {
	return &Prist{
		deps: deps,
		log:  zap.L().With(zap.String("source", "prist")),
	}
}

func (s *Prist) Name() string { return "prist" }

// Search implements Source.
func (s *Prist) Search(ctx context.Context, query string) (model.SourceResult, error) {
	q := normalizeQuery(query)
	searchURL := fmt.Sprintf("%s/search/?q=%s", s.deps.BaseURL, url.QueryEscape(q))

	resp, err := s.deps.Exec.Get(ctx, searchURL)
	if err != nil {
		return model.SourceResult{}, err
	}
	if !resp.OK() {
		return model.SourceResult{}, eris.Errorf("prist: search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "prist: parse html")
	}

	var cands []candidate
	doc.Find("div.catalog-item").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.deps.maxResults() {
			return false
		}

		link := sel.Find("a.catalog-item__name").First()
		name := strings.Join(strings.Fields(link.Text()), " ")
		if name == "" || !nameMatch(query, name) {
			return true
		}

		price := parsePrice(sel.Find("span.catalog-item__price").First().Text())
		if price == 0 {
			price = detectStatus(sel.Text())
		}
		if price == 0 {
			price = priceDiscontinued
		}

		href, _ := link.Attr("href")
		if strings.HasPrefix(href, "/") {
			href = s.deps.BaseURL + href
		}

		cands = append(cands, candidate{name: name, price: price, url: href})
		return true
	})

	best, ok := pickBest(cands)
	if !ok {
		s.log.Debug("product not found", zap.String("query", query))
		return model.NotFoundResult(), nil
	}

	s.log.Debug("product matched",
		zap.String("query", query),
		zap.String("found", best.name),
		zap.Float64("price", best.price),
	)
	return best.toResult(), nil
}
