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

// Listings price through configuration options, and the base option
// carries a token amount far below any real instrument price. Anything
// at or under this ceiling is a placeholder, not a quote.
const keysightBasePriceCeiling = 1000.0

// Keysight looks up instruments on keysight-technologies.ru, an OpenCart
// storefront. The real price hides in option data attributes rather than
// the listing text, so extraction walks the options first and only then
// falls back to the visible price node.
type Keysight struct {
	deps Deps
	log  *zap.Logger
}

// NewKeysight creates the worker.
func NewKeysight(deps Deps) *Keysight {
	return &Keysight{
		deps: deps,
		log:  zap.L().With(zap.String("source", "keysight")),
	}
}

func (s *Keysight) Name() string { return "keysight" }

// Search implements Source.
func (s *Keysight) Search(ctx context.Context, query string) (model.SourceResult, error) {
	q := normalizeQuery(query)
	searchURL := fmt.Sprintf("%s/index.php?route=product/search&search=%s&description=true",
		s.deps.BaseURL, url.QueryEscape(q))

	resp, err := s.deps.Exec.Get(ctx, searchURL)
	if err != nil {
		return model.SourceResult{}, err
	}
	if !resp.OK() {
		return model.SourceResult{}, eris.Errorf("keysight: search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "keysight: parse html")
	}

	items := doc.Find("div.product-layout")
	if items.Length() == 0 {
		items = doc.Find("div.product-thumb")
	}

	var cands []candidate
	items.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.deps.maxResults() {
			return false
		}

		link := sel.Find(".product-thumb__name").First()
		if link.Length() == 0 {
			link = sel.Find("div.caption h4 a").First()
		}
		name := strings.Join(strings.Fields(link.Text()), " ")
		if name == "" || !nameMatch(query, name) {
			return true
		}

		price := optionPrice(sel)
		if price == 0 {
			priceNode := sel.Find(".price").First()
			if raw, ok := priceNode.Attr("data-price"); ok {
				price = parsePrice(raw)
			}
			if price == 0 {
				price = parsePrice(priceNode.Text())
			}
		}
		if price == 0 {
			price = detectStatus(sel.Text())
		}
		if price == 0 {
			price = priceDiscontinued
		}

		// The name node is an anchor itself on the grid layout and wraps
		// one on the list layout.
		href, ok := link.Attr("href")
		if !ok {
			href, _ = link.Find("a").First().Attr("href")
		}
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

// optionPrice pulls the first real configuration price out of a listing:
// option inputs carry data-price, and option names repeat the amount in
// their title ("+ 43 935 ₽").
func optionPrice(sel *goquery.Selection) float64 {
	price := 0.0
	sel.Find(".option__item input[data-price]").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		raw, _ := opt.Attr("data-price")
		if v := parsePrice(raw); v > keysightBasePriceCeiling {
			price = v
			return false
		}
		return true
	})
	if price > 0 {
		return price
	}
	sel.Find(".option__name[title]").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		title, _ := opt.Attr("title")
		if !strings.Contains(title, "₽") {
			return true
		}
		if v := parsePrice(title); v > keysightBasePriceCeiling {
			price = v
			return false
		}
		return true
	})
	return price
}
