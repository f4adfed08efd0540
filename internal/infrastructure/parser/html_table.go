package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PollTrends/internal/domain"
	"PollTrends/internal/ports"
)

const userAgent = "PollTrends/1.0"

// HTMLTableSource downloads a page and reads the first table on it.
type HTMLTableSource struct {
	pageURL string
	client  *http.Client
	logger  *slog.Logger

	fetched bool
	headers []string
	rows    [][]string
}

var _ ports.TableSource = (*HTMLTableSource)(nil)

// NewHTMLTableSource wires an HTTP client; a 20s timeout client is used when nil.
func NewHTMLTableSource(pageURL string, client *http.Client, log *slog.Logger) *HTMLTableSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLTableSource{pageURL: pageURL, client: client, logger: log}
}

// Fetch downloads and parses the page. A page without a table, header or body
// yields a StructuralError.
func (s *HTMLTableSource) Fetch(ctx context.Context) error {
	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return err
	}

	headers, rows, err := extractTable(doc)
	if err != nil {
		return err
	}

	s.headers, s.rows, s.fetched = headers, rows, true
	s.debug("table fetched", "url", s.pageURL, "columns", len(headers), "rows", len(rows))
	return nil
}

// HeaderLabels returns the header cell texts in column order.
func (s *HTMLTableSource) HeaderLabels() ([]string, error) {
	if !s.fetched {
		return nil, &domain.MisuseError{Op: "header labels", Reason: "page not fetched, call Fetch first"}
	}
	return append([]string(nil), s.headers...), nil
}

// BodyRows returns the text of every td of every body row.
func (s *HTMLTableSource) BodyRows() ([][]string, error) {
	if !s.fetched {
		return nil, &domain.MisuseError{Op: "body rows", Reason: "page not fetched, call Fetch first"}
	}
	rows := make([][]string, len(s.rows))
	for i, row := range s.rows {
		rows[i] = append([]string(nil), row...)
	}
	return rows, nil
}

func (s *HTMLTableSource) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractTable(doc *goquery.Document) ([]string, [][]string, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil, domain.NewStructuralError("page has no table")
	}

	headerCells := table.Find("thead tr").First().Find("th, td")
	if headerCells.Length() == 0 {
		headerCells = table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Find("th").Length() > 0
		}).First().Find("th")
	}
	if headerCells.Length() == 0 {
		return nil, nil, domain.NewStructuralError("table has no header section")
	}
	headers := headerCells.Map(func(_ int, cell *goquery.Selection) string {
		return cellText(cell)
	})

	body := table.Find("tbody").First()
	if body.Length() == 0 {
		return nil, nil, domain.NewStructuralError("table has no body section")
	}

	var rows [][]string
	body.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, tr.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return cellText(cell)
		}))
	})
	if len(rows) == 0 {
		return nil, nil, domain.NewStructuralError("table body has no rows")
	}

	return headers, rows, nil
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}

func (s *HTMLTableSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
