package analyze

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mrz1836/go-sanitize"
)

// contentSelectors are tried in order for the main article body.
var contentSelectors = []string{
	"article",
	"main article",
	".ArticleBody-articleBody",
	".article-body",
	".article__content",
	"main",
}

// ScrapeSummarizer downloads an article and keeps its first sentences.
type ScrapeSummarizer struct {
	client    *http.Client
	sentences int
}

// NewScrapeSummarizer returns a summarizer keeping n sentences. A nil client gets a 20s timeout.
func NewScrapeSummarizer(client *http.Client, n int) *ScrapeSummarizer {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if n <= 0 {
		n = 3
	}
	return &ScrapeSummarizer{client: client, sentences: n}
}

// Summarize implements TextFunc.
func (s *ScrapeSummarizer) Summarize(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; headlines)")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	text, err := ExtractText(resp.Body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no article text found at %s", url)
	}
	return FirstSentences(text, s.sentences), nil
}

// ExtractText pulls readable body text from an HTML document.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()

	for _, sel := range contentSelectors {
		section := doc.Find(sel)
		if section.Length() == 0 {
			continue
		}
		if text := paragraphs(section.First(), 0); text != "" {
			return text, nil
		}
		if text := collapse(section.First().Text()); text != "" {
			return text, nil
		}
	}

	// Fallback: grab first few paragraphs as plain text
	return paragraphs(doc.Selection, 5), nil
}

// paragraphs joins the text of <p> elements under sel; limit 0 means all.
func paragraphs(sel *goquery.Selection, limit int) string {
	var paras []string
	sel.Find("p").EachWithBreak(func(i int, p *goquery.Selection) bool {
		if txt := collapse(p.Text()); txt != "" {
			paras = append(paras, sanitize.HTML(txt))
		}
		return limit == 0 || len(paras) < limit
	})
	return strings.Join(paras, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstSentences returns up to n sentences of text.
func FirstSentences(text string, n int) string {
	text = collapse(text)
	if n <= 0 || text == "" {
		return text
	}
	count := 0
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		count++
		if count == n {
			return string(runes[:i+1])
		}
	}
	return text
}
