package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/types"
)

// Scraper handles scraping news from multiple sources
type Scraper struct {
	sources []NewsSource
	timeout time.Duration
}

// NewsSource defines a news source configuration
type NewsSource struct {
	Name       string
	BaseURL    string
	SearchPath string // e.g., "/search?q={query}"
	Selectors  ArticleSelectors
	RateLimit  time.Duration
}

// ArticleSelectors defines CSS selectors for extracting article data
type ArticleSelectors struct {
	ArticleContainer string
	Title            string
	URL              string
	Content          string
	PublishedAt      string
}

// NewScraper creates a new news scraper with default sources
func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		sources: getDefaultSources(),
		timeout: timeout,
	}
}

// getDefaultSources returns the Korean financial news sources to scrape
func getDefaultSources() []NewsSource {
	return []NewsSource{
		{
			Name:       "NaverFinance",
			BaseURL:    "https://finance.naver.com",
			SearchPath: "/news/news_search.naver?q={query}",
			Selectors: ArticleSelectors{
				ArticleContainer: "dl.newsList dd.articleSubject, dl.newsList dt.articleSubject",
				Title:            "a",
				URL:              "a",
				Content:          "dd.articleSummary",
				PublishedAt:      "span.wdate",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "Hankyung",
			BaseURL:    "https://www.hankyung.com",
			SearchPath: "/search?query={query}",
			Selectors: ArticleSelectors{
				ArticleContainer: "ul.article li",
				Title:            "h3 a, h2 a",
				URL:              "h3 a, h2 a",
				Content:          "p.txt",
				PublishedAt:      "span.date-time",
			},
			RateLimit: 2 * time.Second,
		},
	}
}

// ScrapeNews fetches news articles for a given symbol from all sources
func (s *Scraper) ScrapeNews(ctx context.Context, symbol types.Symbol, maxArticles int) ([]types.NewsArticle, error) {
	logger.Info(ctx, "Starting news scraping", "symbol", symbol.Code, "sources", len(s.sources))

	allArticles := []types.NewsArticle{}
	articlesPerSource := maxArticles / len(s.sources)
	if articlesPerSource < 1 {
		articlesPerSource = 1
	}

	for _, source := range s.sources {
		if err := ctx.Err(); err != nil {
			return allArticles, err
		}
		articles, err := s.scrapeSource(ctx, source, symbol, articlesPerSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "symbol", symbol.Code)
			continue
		}
		allArticles = append(allArticles, articles...)

		// Rate limiting between sources
		if err := sleepCtx(ctx, source.RateLimit); err != nil {
			return allArticles, err
		}
	}

	logger.Info(ctx, "News scraping completed", "symbol", symbol.Code, "articles", len(allArticles))
	return allArticles, nil
}

// scrapeSource scrapes articles from a single news source
func (s *Scraper) scrapeSource(ctx context.Context, source NewsSource, symbol types.Symbol, maxArticles int) ([]types.NewsArticle, error) {
	articles := []types.NewsArticle{}

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(source.BaseURL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)

	c.SetRequestTimeout(s.timeout)

	// Set user agent to avoid being blocked
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML(source.Selectors.ArticleContainer, func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}

		title := strings.TrimSpace(e.ChildText(source.Selectors.Title))
		if title == "" {
			return
		}

		articleURL := e.ChildAttr(source.Selectors.URL, "href")
		if articleURL == "" {
			return
		}
		if !strings.HasPrefix(articleURL, "http") {
			articleURL = source.BaseURL + articleURL
		}

		content := strings.TrimSpace(e.ChildText(source.Selectors.Content))
		publishedAt := strings.TrimSpace(e.ChildText(source.Selectors.PublishedAt))

		articles = append(articles, types.NewsArticle{
			Title:       title,
			URL:         articleURL,
			Content:     content,
			Source:      source.Name,
			PublishedAt: publishedAt,
			Symbol:      symbol.Code,
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Scraping error", err, "source", source.Name, "url", r.Request.URL.String())
	})

	// company name gets far better search hits than the numeric ticker
	query := symbol.Name
	if query == "" {
		query = symbol.Code
	}
	searchURL := source.BaseURL + strings.ReplaceAll(source.SearchPath, "{query}", url.QueryEscape(query))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}

	c.Wait()

	articles = s.enrichArticles(ctx, articles)

	return articles, nil
}

// enrichArticles fetches full content for articles if the initial scrape only got summaries
func (s *Scraper) enrichArticles(ctx context.Context, articles []types.NewsArticle) []types.NewsArticle {
	enriched := make([]types.NewsArticle, len(articles))
	copy(enriched, articles)

	for i := range enriched {
		if ctx.Err() != nil {
			return enriched
		}
		if len(enriched[i].Content) < 100 {
			fullContent := s.fetchArticleContent(ctx, enriched[i].URL)
			if fullContent != "" {
				enriched[i].Content = fullContent
			}
		}

		// Rate limiting between article fetches
		if sleepCtx(ctx, 500*time.Millisecond) != nil {
			return enriched
		}
	}

	return enriched
}

// fetchArticleContent fetches full content from an article URL
func (s *Scraper) fetchArticleContent(ctx context.Context, articleURL string) string {
	c := colly.NewCollector()
	c.SetRequestTimeout(s.timeout)

	var content string

	c.OnHTML("article, div.article-body, div#articleBodyContents, div.news-article", func(e *colly.HTMLElement) {
		paragraphs := []string{}
		e.DOM.Find("p").Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text != "" && len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		content = strings.Join(paragraphs, "\n\n")
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	})

	if ctx.Err() != nil {
		return ""
	}
	if err := c.Visit(articleURL); err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch article content", err, "url", articleURL)
		return ""
	}

	return content
}

// sleepCtx waits for d or until ctx is canceled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// getDomain extracts domain from URL
func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ScrapeGoogleNews searches Google News for company news (fallback method)
func (s *Scraper) ScrapeGoogleNews(ctx context.Context, symbol types.Symbol, maxArticles int) ([]types.NewsArticle, error) {
	articles := []types.NewsArticle{}

	c := colly.NewCollector(
		colly.AllowedDomains("news.google.com", "www.google.com"),
	)

	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	})

	c.OnHTML("article", func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}

		title := e.ChildText("h3, h4")
		link := e.ChildAttr("a", "href")

		if title != "" && link != "" {
			// Clean up Google News redirect URL
			if strings.HasPrefix(link, "./articles/") {
				link = "https://news.google.com" + link[1:]
			}

			articles = append(articles, types.NewsArticle{
				Title:  title,
				URL:    link,
				Source: "GoogleNews",
				Symbol: symbol.Code,
			})
		}
	})

	query := symbol.Name
	if query == "" {
		query = symbol.Code
	}
	searchQuery := url.QueryEscape(query + " 주가")
	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=ko&gl=KR&ceid=KR:ko", searchQuery)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to scrape Google News: %w", err)
	}

	c.Wait()

	logger.Info(ctx, "Google News scraping completed", "symbol", symbol.Code, "articles", len(articles))
	return articles, nil
}
