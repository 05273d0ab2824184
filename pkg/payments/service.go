package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Service is the payment gateway client. The gateway is an external,
// flaky dependency, so every call goes through a circuit breaker.
type Service struct {
	apiURL     string
	httpClient *http.Client
	logger     zerolog.Logger
	breaker    *gobreaker.CircuitBreaker
}

func (s *Service) LoggerComponent() string {
	return "Payments.Service"
}

func NewService(apiURL string, opts ...ServiceOption) (*Service, error) {
	c := &Service{
		apiURL:     apiURL,
		httpClient: http.DefaultClient,
		logger:     log.Logger,
	}

	for _, o := range opts {
		o(c)
	}

	c.logger = c.logger.With().Str("component", c.LoggerComponent()).Logger()

	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "paygate",
			Timeout: 30 * time.Second,
		})
	}

	return c, nil
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = c
	}
}

func WithBreakerSettings(st gobreaker.Settings) ServiceOption {
	return func(s *Service) {
		s.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

// CreatePayment registers a payment intent with the gateway.
func (s *Service) CreatePayment(ctx context.Context, in *CreatePaymentRequest, out *CreatePaymentResponse) error {
	l := s.logger.With().
		Str("method", "CreatePayment").
		Str("ref", in.Ref).
		Logger()
	ctx = l.WithContext(ctx)

	err := s.genericCall(ctx, http.MethodPost, "/api/payments", in, out)
	if err != nil {
		return err
	}

	l.Debug().Str("payment_status", out.Status).Msg("CreatePayment success")

	return nil
}

// GetPayment fetches the current status of a payment.
func (s *Service) GetPayment(ctx context.Context, ref string, out *GetPaymentResponse) error {
	l := s.logger.With().
		Str("method", "GetPayment").
		Str("ref", ref).
		Logger()
	ctx = l.WithContext(ctx)

	err := s.genericCall(ctx, http.MethodGet, fmt.Sprintf("/api/payments/%s", ref), nil, out)
	if err != nil {
		return err
	}

	l.Debug().Str("payment_status", out.Status).Msg("GetPayment success")

	return nil
}

type RemoteError struct {
	ResponseBody string
	StatusCode   int
}

func NewRemoteError(responseBody string, statusCode int) *RemoteError {
	return &RemoteError{ResponseBody: responseBody, StatusCode: statusCode}
}

func (e *RemoteError) Error() string {
	return e.ResponseBody
}

func (s *Service) genericCall(ctx context.Context, method, endpoint string, in interface{}, out interface{}) error {
	l := zerolog.Ctx(ctx).With().Str("http_method", method).Str("endpoint", endpoint).Logger()
	ctx = l.WithContext(ctx)

	body, err := s.breaker.Execute(func() (interface{}, error) {
		res, err := s.request(ctx, method, endpoint, in)
		if err != nil {
			l.Error().Err(err).
				Msg("Service request failed")
			return nil, errors.Wrap(err, "request")
		}
		defer func() {
			_ = res.Body.Close()
		}()

		if res.StatusCode >= 400 {
			resBody := readString(res.Body)
			l.Error().
				Str("http_body", resBody).
				Msg("Service responded with error")
			return nil, NewRemoteError(resBody, res.StatusCode)
		}

		return readBytes(res.Body)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return errors.Wrap(err, "json decode")
	}

	return nil
}

func (s *Service) request(
	ctx context.Context,
	method string,
	endpoint string,
	bodyParams interface{},
) (*http.Response, error) {
	fullURL := s.apiURL + endpoint
	l := zerolog.Ctx(ctx).With().
		Str("http_method", method).
		Str("url", fullURL).
		Logger()
	l.Debug().Msg("HTTP request")

	rawJSON, err := json.Marshal(bodyParams)
	if err != nil {
		return nil, errors.Wrap(err, "json encode")
	}

	req, err := http.NewRequest(method, fullURL, bytes.NewReader(rawJSON))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req = req.WithContext(ctx)

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		l.Error().Err(err).
			Msg("Call failed")
		return nil, errors.Wrap(err, "do request")
	}

	return res, nil
}
