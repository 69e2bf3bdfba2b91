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

// Mprofit looks up instruments on mprofit.ru, a Bitrix storefront.
// Matching is article-exact; listings that appear without a price value
// are either on request or out of the catalog.
type Mprofit struct {
	deps Deps
	log  *zap.Logger
}

// NewMprofit creates the worker.
func NewMprofit(deps Deps) *Mprofit {
	return &Mprofit{
		deps: deps,
		log:  zap.L().With(zap.String("source", "mprofit")),
	}
}

func (s *Mprofit) Name() string { return "mprofit" }

// Search implements Source.
func (s *Mprofit) Search(ctx context.Context, query string) (model.SourceResult, error) {
	q := normalizeQuery(query)
	searchURL := fmt.Sprintf("%s/catalog/?q=%s&s=%s&type=catalog",
		s.deps.BaseURL, url.QueryEscape(q), url.QueryEscape("Найти"))

	resp, err := s.deps.Exec.Get(ctx, searchURL)
	if err != nil {
		return model.SourceResult{}, err
	}
	if !resp.OK() {
		return model.SourceResult{}, eris.Errorf("mprofit: search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "mprofit: parse html")
	}

	items := doc.Find(".catalog.list.search .list_item_wrapp")
	if items.Length() == 0 {
		items = doc.Find(".list_item_wrapp.item_wrap.item")
	}

	var cands []candidate
	items.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.deps.maxResults() {
			return false
		}

		link := sel.Find(".item-title a").First()
		name := strings.Join(strings.Fields(link.Find("span").First().Text()), " ")
		if name == "" {
			name = strings.Join(strings.Fields(link.Text()), " ")
		}
		if name == "" || !nameMatch(query, name) {
			return true
		}

		price := parsePrice(sel.Find(".price_value").First().Text())
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
