// Package paynow is a client for the Paynow mobile money gateway.
package paynow

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/rentkart/internal/domain/payment"
)

var _ payment.Gateway = (*Client)(nil)

const (
	remoteTransactionPath = "/interface/remotetransaction"
	defaultTimeout        = 30 * time.Second
	maxResponseSize       = 64 << 10
)

// Config holds the merchant integration settings.
type Config struct {
	IntegrationID  string
	IntegrationKey string
	BaseURL        string
	ResultURL      string
	ReturnURL      string
	AuthEmail      string
	Timeout        time.Duration
}

// Client talks to Paynow over HTTPS. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	tracer trace.Tracer
}

// New creates a Client. Every call is bounded by cfg.Timeout.
func New(cfg Config, tracerProvider trace.TracerProvider) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tracerProvider),
			),
		},
		tracer: tracerProvider.Tracer("rentkart/paynow"),
	}
}

// SendMobile initiates an express mobile checkout, which pushes a payment
// prompt to the payer's handset.
func (c *Client) SendMobile(ctx context.Context, req payment.ChargeRequest) (_ *payment.Charge, rerr error) {
	ctx, span := c.tracer.Start(ctx, "paynow.SendMobile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("paynow.reference", req.Reference),
			attribute.String("paynow.method", req.Method),
		),
	)
	defer func() { endSpan(span, rerr) }()

	total := decimal.Zero
	info := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		total = total.Add(it.Amount)
		info = append(info, it.Name+" "+it.Amount.StringFixed(2))
	}

	msg := Fields{
		{Key: "id", Value: c.cfg.IntegrationID},
		{Key: "reference", Value: req.Reference},
		{Key: "amount", Value: total.StringFixed(2)},
		{Key: "additionalinfo", Value: strings.Join(info, ", ")},
		{Key: "returnurl", Value: c.cfg.ReturnURL},
		{Key: "resulturl", Value: c.cfg.ResultURL},
		{Key: "authemail", Value: c.cfg.AuthEmail},
		{Key: "phone", Value: req.Phone},
		{Key: "method", Value: req.Method},
		{Key: "status", Value: "Message"},
	}.Sign(c.cfg.IntegrationKey)

	resp, err := c.post(ctx, c.cfg.BaseURL+remoteTransactionPath, msg)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Get("status"), "error") {
		return nil, &payment.GatewayError{Message: resp.Get("error")}
	}
	if err := resp.Verify(c.cfg.IntegrationKey); err != nil {
		return nil, &payment.GatewayError{Message: "response failed verification", Err: err}
	}

	charge := &payment.Charge{
		ExternalReference: resp.Get("paynowreference"),
		PollURL:           resp.Get("pollurl"),
		Instructions:      resp.Get("instructions"),
	}
	span.SetAttributes(attribute.String("paynow.external_reference", charge.ExternalReference))
	return charge, nil
}

// PollStatus queries the transaction status behind pollURL.
func (c *Client) PollStatus(ctx context.Context, pollURL string) (_ *payment.StatusUpdate, rerr error) {
	ctx, span := c.tracer.Start(ctx, "paynow.PollStatus", trace.WithSpanKind(trace.SpanKindClient))
	defer func() { endSpan(span, rerr) }()

	resp, err := c.post(ctx, pollURL, nil)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Get("status"), "error") {
		return nil, &payment.GatewayError{Message: resp.Get("error")}
	}
	upd, err := c.statusUpdate(resp)
	if err != nil {
		return nil, &payment.GatewayError{Message: "response failed verification", Err: err}
	}
	span.SetAttributes(attribute.String("paynow.status", resp.Get("status")))
	return upd, nil
}

// ParseStatusUpdate verifies a status message pushed to the result URL.
func (c *Client) ParseStatusUpdate(fs Fields) (*payment.StatusUpdate, error) {
	return c.statusUpdate(fs)
}

func (c *Client) statusUpdate(fs Fields) (*payment.StatusUpdate, error) {
	if err := fs.Verify(c.cfg.IntegrationKey); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(fs.Get("amount"))
	if err != nil {
		amount = decimal.Zero
	}
	return &payment.StatusUpdate{
		Reference:         fs.Get("reference"),
		ExternalReference: fs.Get("paynowreference"),
		Status:            MapStatus(fs.Get("status")),
		Amount:            amount,
		PollURL:           fs.Get("pollurl"),
	}, nil
}

func (c *Client) post(ctx context.Context, target string, msg Fields) (Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(msg.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode >= 300 {
		return nil, &payment.GatewayError{Message: "unexpected HTTP status " + resp.Status}
	}

	fs, err := ParseFields(string(body))
	if err != nil {
		return nil, &payment.GatewayError{Message: "malformed response", Err: err}
	}
	return fs, nil
}

func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &payment.GatewayError{Message: "request timed out", Err: err}
	}
	return &payment.GatewayError{Message: "request failed", Err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// MapStatus converts a Paynow transaction status to a payment status.
func MapStatus(s string) payment.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "awaiting delivery", "delivered":
		return payment.StatusPaid
	case "cancelled":
		return payment.StatusCancelled
	case "failed", "disputed", "refunded":
		return payment.StatusFailed
	default:
		return payment.StatusPending
	}
}
