// Package address fills a delivery address from a Brazilian postal code (CEP)
// using the ViaCEP web service.
package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://viacep.com.br/ws"

var (
	ErrInvalidPostalCode = errors.New("postal code must have 8 digits")
	ErrAddressNotFound   = errors.New("address not found")
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	settings := circuitbreaker.DefaultSettings("viacep")
	settings.IsSuccessful = isSuccessful
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New(settings, logger),
		logger:  logger,
	}
}

func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, ErrAddressNotFound) ||
		errors.Is(err, context.Canceled)
}

// NormalizePostalCode strips everything but digits and reports whether exactly
// eight remain.
func NormalizePostalCode(cep string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cep)
	return digits, len(digits) == 8
}

type viaCEPResponse struct {
	CEP          string          `json:"cep"`
	Street       string          `json:"logradouro"`
	Complement   string          `json:"complemento"`
	Neighborhood string          `json:"bairro"`
	City         string          `json:"localidade"`
	State        string          `json:"uf"`
	Erro         json.RawMessage `json:"erro"`
}

// ViaCEP has answered both `"erro": true` and `"erro": "true"`.
func (r viaCEPResponse) notFound() bool {
	return strings.Trim(strings.TrimSpace(string(r.Erro)), `"`) == "true"
}

// Lookup returns the address of cep with street, neighborhood, city and state
// filled. Number and complement are left for the shopper. Input without
// exactly eight digits is rejected without calling the service.
func (c *Client) Lookup(ctx context.Context, cep string) (*domain.DeliveryAddress, error) {
	digits, ok := NormalizePostalCode(cep)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPostalCode, cep)
	}

	return circuitbreaker.Execute(c.breaker, func() (*domain.DeliveryAddress, error) {
		return c.fetch(ctx, digits)
	})
}

func (c *Client) fetch(ctx context.Context, digits string) (*domain.DeliveryAddress, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+digits+"/json/", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viacep request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("viacep returned status %d", resp.StatusCode)
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode viacep response: %w", err)
	}
	if body.notFound() {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, digits)
	}

	c.logger.Debug("address resolved", zap.String("cep", digits), zap.String("city", body.City))
	return &domain.DeliveryAddress{
		PostalCode:   digits,
		Street:       body.Street,
		Complement:   body.Complement,
		Neighborhood: body.Neighborhood,
		City:         body.City,
		State:        body.State,
	}, nil
}
