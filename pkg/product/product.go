// Package product looks up public product records on Open Food Facts.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the public Open Food Facts API.
	DefaultBaseURL = "https://world.openfoodfacts.org"

	defaultBrand = "Unknown Brand"
	defaultName  = "Unknown Product"
	defaultGrade = "C"
)

// ErrNotFound is returned when the barcode has no product record.
var ErrNotFound = errors.New("product not found")

// Product is a normalized product record.
type Product struct {
	Barcode     string          `json:"barcode"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	ImageURL    string          `json:"image,omitempty"`
	Ingredients []string        `json:"ingredients"`
	HealthGrade string          `json:"healthGrade"`
	EcoGrade    string          `json:"ecoGrade"`
	Nutriments  json.RawMessage `json:"nutriments,omitempty"`
	ScannedAt   time.Time       `json:"lastScannedAt"`
}

// Client fetches products from an Open Food Facts compatible API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithUserAgent sets the User-Agent header sent with lookups.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a lookup client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  "ecoscan/0.1",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.New(io.Discard),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches and normalizes the product with the given barcode.
func (c *Client) Lookup(ctx context.Context, barcode string) (*Product, error) {
	barcode = strings.TrimSpace(barcode)
	if err := ValidateBarcode(barcode); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, barcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", barcode, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product lookup returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("product lookup returned invalid JSON")
	}

	doc := gjson.ParseBytes(body)
	if doc.Get("status").Int() != 1 {
		c.logger.Debug("product not found", "barcode", barcode, "status_verbose", doc.Get("status_verbose").String())
		return nil, fmt.Errorf("%s: %w", barcode, ErrNotFound)
	}

	p := parse(barcode, doc.Get("product"))
	p.ScannedAt = c.now()
	return p, nil
}

func parse(barcode string, p gjson.Result) *Product {
	out := &Product{
		Barcode:     barcode,
		Name:        firstNonEmpty(p.Get("product_name").String(), p.Get("product_name_en").String(), defaultName),
		Brand:       defaultBrand,
		ImageURL:    p.Get("image_front_url").String(),
		Ingredients: []string{},
		HealthGrade: grade(p.Get("nutriscore_grade").String()),
		EcoGrade:    grade(p.Get("ecoscore_grade").String()),
	}

	if brands := p.Get("brands").String(); brands != "" {
		if brand := strings.TrimSpace(strings.Split(brands, ",")[0]); brand != "" {
			out.Brand = brand
		}
	}

	if text := p.Get("ingredients_text").String(); text != "" {
		for _, part := range strings.Split(text, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out.Ingredients = append(out.Ingredients, part)
			}
		}
	}

	if n := p.Get("nutriments"); n.IsObject() {
		out.Nutriments = json.RawMessage(n.Raw)
	}
	return out
}

// ValidateBarcode checks that barcode is a plausible EAN/UPC code.
func ValidateBarcode(barcode string) error {
	if barcode == "" {
		return fmt.Errorf("barcode is required")
	}
	if len(barcode) > 32 {
		return fmt.Errorf("barcode %q is too long", barcode)
	}
	for _, r := range barcode {
		if r < '0' || r > '9' {
			return fmt.Errorf("barcode %q must contain digits only", barcode)
		}
	}
	return nil
}

func grade(g string) string {
	g = strings.TrimSpace(g)
	if g == "" || strings.EqualFold(g, "unknown") || strings.EqualFold(g, "not-applicable") {
		return defaultGrade
	}
	return strings.ToUpper(g)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
