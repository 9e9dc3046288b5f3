package coefapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/forkme7/BoxOptionsServer/internal/service/game"
)

const maxBody = 1 << 20

// Client talks to the coefficient calculation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ game.CoefficientService = (*Client)(nil)

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Change sends new game parameters of pair. The API keeps them per owner.
func (c *Client) Change(ctx context.Context, ownerID, pair string, timeToFirstBox, boxHeight int, boxWidth float64, nPriceIndex, nTimeIndex int) (string, error) {
	q := url.Values{}
	q.Set("pair", pair)
	q.Set("timeToFirstOption", strconv.Itoa(timeToFirstBox))
	q.Set("optionLen", strconv.Itoa(boxHeight))
	q.Set("priceSize", strconv.FormatFloat(boxWidth, 'f', -1, 64))
	q.Set("nPriceIndex", strconv.Itoa(nPriceIndex))
	q.Set("nTimeIndex", strconv.Itoa(nTimeIndex))

	return c.get(ctx, "change", q)
}

// Request returns the coefficient table of pair as raw JSON.
func (c *Client) Request(ctx context.Context, ownerID, pair string) (string, error) {
	q := url.Values{}
	q.Set("pair", pair)
	q.Set("userId", ownerID)

	return c.get(ctx, "request", q)
}

func (c *Client) get(ctx context.Context, method string, q url.Values) (string, error) {
	endpoint := c.baseURL + "/" + method + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("coef %s request: %w", method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("coef %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("coef %s read body: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("coef %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return string(body), nil
}
