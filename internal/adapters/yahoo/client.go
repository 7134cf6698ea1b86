package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"smartflow/internal/domain/marketdata"
	"smartflow/internal/metrics"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

const userAgent = "Mozilla/5.0 (compatible; smartflow/1.0)"

// Client fetches option chains and quotes from the Yahoo Finance public
// API. All requests go through a shared rate limiter so scans stay
// polite regardless of how many callers share the client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// Config for the Yahoo client
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerSec float64
}

// NewClient creates a new Yahoo Finance client
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		log:        log,
	}
}

// Yahoo API response structures

type optionsAPIResponse struct {
	OptionChain struct {
		Result []optionsResult `json:"result"`
		Error  *apiError       `json:"error"`
	} `json:"optionChain"`
}

type optionsResult struct {
	UnderlyingSymbol string         `json:"underlyingSymbol"`
	Quote            quoteItem      `json:"quote"`
	Options          []optionsEntry `json:"options"`
}

type optionsEntry struct {
	ExpirationDate int64          `json:"expirationDate"`
	Calls          []contractItem `json:"calls"`
	Puts           []contractItem `json:"puts"`
}

type contractItem struct {
	ContractSymbol    string  `json:"contractSymbol"`
	Strike            float64 `json:"strike"`
	LastPrice         float64 `json:"lastPrice"`
	Volume            *int64  `json:"volume"`
	OpenInterest      int64   `json:"openInterest"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}

type quoteAPIResponse struct {
	QuoteResponse struct {
		Result []quoteItem `json:"result"`
		Error  *apiError   `json:"error"`
	} `json:"quoteResponse"`
}

type quoteItem struct {
	Symbol             string  `json:"symbol"`
	ShortName          string  `json:"shortName"`
	LongName           string  `json:"longName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Snapshot fetches the nearest-expiry option chain for a symbol together
// with the underlying quote. Any provider failure, including an empty
// result set, maps to ErrDataUnavailable so callers can degrade softly.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	var apiResp optionsAPIResponse
	if err := c.getJSON(ctx, "options", fmt.Sprintf("%s/v7/finance/options/%s", c.baseURL, symbol), &apiResp); err != nil {
		return nil, err
	}

	if apiResp.OptionChain.Error != nil {
		return nil, errors.Wrapf(errors.ErrDataUnavailable, "provider error: %s", apiResp.OptionChain.Error.Description)
	}
	if len(apiResp.OptionChain.Result) == 0 {
		return nil, errors.Wrapf(errors.ErrDataUnavailable, "no option chain for %s", symbol)
	}

	result := apiResp.OptionChain.Result[0]
	if len(result.Options) == 0 {
		return nil, errors.Wrapf(errors.ErrDataUnavailable, "no expirations for %s", symbol)
	}

	// Yahoo orders expirations ascending; the first entry is the
	// nearest-dated chain.
	nearest := result.Options[0]

	snap := &marketdata.Snapshot{
		Symbol:       symbol,
		CompanyName:  companyName(result.Quote, symbol),
		CurrentPrice: decimal.NewFromFloat(result.Quote.RegularMarketPrice),
		Chain: marketdata.OptionChain{
			Symbol:     symbol,
			ExpiryDate: time.Unix(nearest.ExpirationDate, 0).UTC(),
			Calls:      convertContracts(nearest.Calls),
			Puts:       convertContracts(nearest.Puts),
		},
		FetchedAt: time.Now().UTC(),
	}

	c.log.Debugw("Fetched option chain",
		"symbol", symbol,
		"expiry", snap.Chain.ExpiryDate,
		"calls", len(snap.Chain.Calls),
		"puts", len(snap.Chain.Puts),
	)

	return snap, nil
}

// CurrentPrice fetches the latest regular market price for a symbol
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var apiResp quoteAPIResponse
	if err := c.getJSON(ctx, "quote", fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, symbol), &apiResp); err != nil {
		return decimal.Zero, err
	}

	if apiResp.QuoteResponse.Error != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrDataUnavailable, "provider error: %s", apiResp.QuoteResponse.Error.Description)
	}
	if len(apiResp.QuoteResponse.Result) == 0 {
		return decimal.Zero, errors.Wrapf(errors.ErrDataUnavailable, "no quote for %s", symbol)
	}

	return decimal.NewFromFloat(apiResp.QuoteResponse.Result[0].RegularMarketPrice), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, url string, out interface{}) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait")
	}

	start := time.Now()
	defer func() {
		metrics.RecordProviderRequest(endpoint, time.Since(start), err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "create API request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrDataUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(errors.ErrDataUnavailable, "provider returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrDataUnavailable, "decode API response")
	}

	return nil
}

func convertContracts(items []contractItem) []marketdata.OptionQuote {
	quotes := make([]marketdata.OptionQuote, 0, len(items))
	for _, item := range items {
		quotes = append(quotes, marketdata.OptionQuote{
			ContractSymbol:    item.ContractSymbol,
			Strike:            decimal.NewFromFloat(item.Strike),
			LastPrice:         decimal.NewFromFloat(item.LastPrice),
			Volume:            item.Volume,
			OpenInterest:      item.OpenInterest,
			ImpliedVolatility: item.ImpliedVolatility,
		})
	}
	return quotes
}

func companyName(q quoteItem, fallback string) string {
	if q.LongName != "" {
		return q.LongName
	}
	if q.ShortName != "" {
		return q.ShortName
	}
	return fallback
}
