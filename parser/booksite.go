package parser

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/bookcrawl/models"
)

// BookSite reads the markup of books.toscrape.com.
type BookSite struct{}

// NewBookSite returns the books.toscrape.com extractor.
func NewBookSite() *BookSite {
	return &BookSite{}
}

// CategoryInfo reads the category title and result count of a listing page.
func (BookSite) CategoryInfo(doc *goquery.Document) models.CategoryInfo {
	info := models.CategoryInfo{
		Name: NormalizeSpace(doc.Find(".page-header h1").First().Text()),
	}
	if count := strings.TrimSpace(doc.Find("form.form-horizontal strong").First().Text()); count != "" {
		if n, err := strconv.Atoi(count); err == nil && n >= 0 {
			info.ProductCount = n
		}
	}
	return info
}

// CategoryLinks lists the categories of the side navigation, in page order.
func (BookSite) CategoryLinks(doc *goquery.Document, base *url.URL) []models.CategoryLink {
	var links []models.CategoryLink
	seen := make(map[string]struct{})
	doc.Find("aside .side_categories ul.nav-list ul li > a").Each(func(_ int, a *goquery.Selection) {
		abs := resolve(base, a.AttrOr("href", ""))
		if abs == "" {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, models.CategoryLink{URL: abs, Name: NormalizeSpace(a.Text())})
	})
	return links
}

// ProductLinks lists the product page URLs of a listing page.
func (BookSite) ProductLinks(doc *goquery.Document, base *url.URL) []string {
	var urls []string
	doc.Find("article.product_pod h3 a").Each(func(_ int, a *goquery.Selection) {
		if abs := resolve(base, a.AttrOr("href", "")); abs != "" {
			urls = append(urls, abs)
		}
	})
	return urls
}

// NextPageURL returns the pager's next link, or "" on the last page.
func (BookSite) NextPageURL(doc *goquery.Document, base *url.URL) string {
	return resolve(base, doc.Find(".pager li.next > a").First().AttrOr("href", ""))
}

// Product reads a product page. It reports false when doc is not a product
// page. Fields that cannot be read keep their zero value; PageURL is left for
// the caller.
func (BookSite) Product(doc *goquery.Document, pageURL string) (*models.Product, bool) {
	page := doc.Find("article.product_page").First()
	if page.Length() == 0 {
		return nil, false
	}

	p := &models.Product{
		Title:    NormalizeSpace(page.Find("div.product_main h1").First().Text()),
		Category: NormalizeSpace(doc.Find("ul.breadcrumb > li:nth-child(3) > a").First().Text()),
	}

	info := productTable(page)
	p.UPC = info["upc"]
	p.PriceExclTax = ParsePrice(info["price (excl. tax)"])
	p.PriceInclTax = ParsePrice(info["price (incl. tax)"])

	stock := NormalizeSpace(page.Find("div.product_main p.instock.availability").First().Text())
	if stock == "" {
		stock = info["availability"]
	}
	p.NumberAvailable = ParseStock(stock)

	p.Description = NormalizeSpace(page.ChildrenFiltered("p").First().Text())
	p.ReviewRating = RatingFromClass(page.Find("div.product_main p.star-rating").First().AttrOr("class", ""))

	if src := page.Find("#product_gallery .item img").First().AttrOr("src", ""); src != "" {
		p.ImageURL = src
		if base, err := url.Parse(pageURL); err == nil && pageURL != "" {
			p.ImageURL = resolve(base, src)
		}
	}
	return p, true
}

// productTable maps the lower-cased header of each information row to its value.
func productTable(page *goquery.Selection) map[string]string {
	rows := make(map[string]string)
	page.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		key := strings.ToLower(NormalizeSpace(tr.Find("th").First().Text()))
		if key == "" {
			return
		}
		rows[key] = NormalizeSpace(tr.Find("td").First().Text())
	})
	return rows
}

func resolve(base *url.URL, href string) string {
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
