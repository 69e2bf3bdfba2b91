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

// Flukeshop looks up Fluke instruments on flukeshop.ru. The site search
// chokes on commas, so queries are normalized down to the model name.
// Matching is similarity-based: the catalog carries no strict articles.
type Flukeshop struct {
	deps Deps
	log  *zap.Logger
}

// NewFlukeshop creates the worker.
func NewFlukeshop(deps Deps) *Flukeshop {
	return &Flukeshop{
		deps: deps,
		log:  zap.L().With(zap.String("source", "flukeshop")),
	}
}

func (s *Flukeshop) Name() string { return "flukeshop" }

// Search implements Source.
func (s *Flukeshop) Search(ctx context.Context, query string) (model.SourceResult, error) {
	q := normalizeQuery(query)
	searchURL := fmt.Sprintf("%s/search?search=%s", s.deps.BaseURL, url.QueryEscape(q))

	resp, err := s.deps.Exec.Get(ctx, searchURL)
	if err != nil {
		return model.SourceResult{}, err
	}
	if !resp.OK() {
		return model.SourceResult{}, eris.Errorf("flukeshop: search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "flukeshop: parse html")
	}

	var cands []candidate
	doc.Find("div.product-thumb").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.deps.maxResults() {
			return false
		}

		link := sel.Find("div.caption h4 a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" || similarity(query, name) < s.deps.minSimilarity() {
			return true
		}

		price := parsePrice(sel.Find("p.price").First().Text())
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
