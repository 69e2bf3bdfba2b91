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

// Zenit looks up instruments on zenit-electro.ru. The Joomla search
// results carry names and links only, so a matched listing needs a
// second fetch of the product card to read its price.
type Zenit struct {
	deps Deps
	log  *zap.Logger
}

// NewZenit creates the worker.
func NewZenit(deps Deps) *Zenit {
	return &Zenit{
		deps: deps,
		log:  zap.L().With(zap.String("source", "zenit")),
	}
}

func (s *Zenit) Name() string { return "zenit" }

// Search implements Source.
func (s *Zenit) Search(ctx context.Context, query string) (model.SourceResult, error) {
	q := strings.ReplaceAll(normalizeQuery(query), " ", "+")
	searchURL := fmt.Sprintf("%s/component/finder/search.html?q=%s&Search=", s.deps.BaseURL, q)

	resp, err := s.deps.Exec.Get(ctx, searchURL)
	if err != nil {
		return model.SourceResult{}, err
	}
	if !resp.OK() {
		return model.SourceResult{}, eris.Errorf("zenit: search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "zenit: parse html")
	}

	productURL := ""
	doc.Find("ul#search-result-list > li").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.deps.maxResults() {
			return false
		}

		link := sel.Find("h4.result-title a").First()
		name := strings.Join(strings.Fields(link.Text()), " ")
		if name == "" || !nameMatch(query, name) {
			return true
		}

		href, _ := link.Attr("href")
		if strings.HasPrefix(href, "/") {
			href = s.deps.BaseURL + href
		}
		productURL = href
		return false
	})

	if productURL == "" {
		s.log.Debug("product not found", zap.String("query", query))
		return model.NotFoundResult(), nil
	}
	return s.productCard(ctx, query, productURL)
}

// productCard reads the matched product page. The price block holds text
// like "23 500 ₽ (с НДС)"; a card without it is an item the shop no
// longer sells.
func (s *Zenit) productCard(ctx context.Context, query, pageURL string) (model.SourceResult, error) {
	resp, err := s.deps.Exec.Get(ctx, pageURL)
	if err != nil {
		return model.SourceResult{}, err
	}
	if !resp.OK() {
		return model.SourceResult{}, eris.Errorf("zenit: product page status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "zenit: parse product page")
	}

	name := strings.Join(strings.Fields(doc.Find(`h1[itemprop="name"]`).First().Text()), " ")
	if name == "" {
		name = query
	}

	raw := doc.Find("span#block_price").First().Text()
	if i := strings.Index(raw, "("); i >= 0 {
		raw = raw[:i]
	}
	price := parsePrice(raw)
	if price == 0 {
		price = priceDiscontinued
	}

	c := candidate{name: name, price: price, url: pageURL}
	s.log.Debug("product matched",
		zap.String("query", query),
		zap.String("found", c.name),
		zap.Float64("price", c.price),
	)
	return c.toResult(), nil
}
