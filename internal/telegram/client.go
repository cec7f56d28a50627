// Package telegram is a thin client for the Bot API methods the storefront
// uses: notifications, invoices and update polling.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tg-storefront/internal/config"
	"tg-storefront/internal/metrics"

	"github.com/rs/zerolog"
)

const maxResponseBody = 1 << 20

// TransportError reports that a Bot API call did not complete at the
// network level.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Response is the raw outcome of a Bot API call.
type Response struct {
	StatusCode int
	OK         bool
	Body       []byte
}

// Payload returns the body as JSON when the call succeeded and the body is
// valid JSON, or the body text encoded as a JSON string otherwise.
func (r *Response) Payload() json.RawMessage {
	if r.OK && json.Valid(r.Body) {
		return json.RawMessage(r.Body)
	}
	text, _ := json.Marshal(string(r.Body))
	return text
}

// Client calls the Bot API with form-encoded POST requests.
type Client struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewClient creates a Bot API client. Each call is bounded by
// cfg.RequestTimeout.
func NewClient(cfg config.TelegramConfig, m *metrics.Metrics, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		endpoint:   strings.TrimRight(cfg.APIBase, "/") + "/bot" + cfg.BotToken,
		timeout:    cfg.RequestTimeout,
		metrics:    m,
		logger:     logger.With().Str("component", "telegram-client").Logger(),
	}
}

// SendMessage delivers a chat message. With bestEffort set, transport
// failures are logged and swallowed, and the call returns (nil, nil).
func (c *Client) SendMessage(ctx context.Context, msg Message, bestEffort bool) (*Response, error) {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(msg.ChatID, 10))
	form.Set("text", msg.Text)
	if msg.ReplyMarkup != nil {
		markup, err := json.Marshal(msg.ReplyMarkup)
		if err != nil {
			return nil, fmt.Errorf("failed to encode reply markup: %w", err)
		}
		form.Set("reply_markup", string(markup))
	}

	return c.call(ctx, "sendMessage", form, c.timeout, bestEffort)
}

// SendInvoice delivers a payment invoice. Transport failures are returned.
func (c *Client) SendInvoice(ctx context.Context, inv Invoice) (*Response, error) {
	prices, err := json.Marshal(inv.Prices)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prices: %w", err)
	}

	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(inv.ChatID, 10))
	form.Set("title", inv.Title)
	form.Set("description", inv.Description)
	form.Set("payload", inv.Payload)
	form.Set("provider_token", inv.ProviderToken)
	form.Set("start_parameter", inv.StartParameter)
	form.Set("currency", inv.Currency)
	form.Set("prices", string(prices))

	return c.call(ctx, "sendInvoice", form, c.timeout, false)
}

// AnswerPreCheckoutQuery confirms or rejects a pending checkout.
func (c *Client) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	form := url.Values{}
	form.Set("pre_checkout_query_id", queryID)
	form.Set("ok", strconv.FormatBool(ok))
	if !ok {
		form.Set("error_message", errorMessage)
	}

	resp, err := c.call(ctx, "answerPreCheckoutQuery", form, c.timeout, false)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("answerPreCheckoutQuery rejected: %s", resp.Body)
	}
	return nil
}

// GetUpdates long-polls for updates with IDs of at least offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]Update, error) {
	form := url.Values{}
	form.Set("offset", strconv.FormatInt(offset, 10))
	form.Set("timeout", strconv.Itoa(int(wait.Seconds())))
	form.Set("allowed_updates", `["message","pre_checkout_query"]`)

	resp, err := c.call(ctx, "getUpdates", form, wait+c.timeout, false)
	if err != nil {
		return nil, err
	}

	var envelope apiResult
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response: %w", err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("getUpdates failed (%d): %s", envelope.ErrorCode, envelope.Description)
	}

	var updates []Update
	if err := json.Unmarshal(envelope.Result, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method string, form url.Values, timeout time.Duration, bestEffort bool) (*Response, error) {
	resp, err := c.do(ctx, method, form, timeout)
	if err != nil {
		c.metrics.ObserveGatewayCall(method, metrics.OutcomeTransportError)
		if bestEffort {
			c.logger.Warn().Err(err).Str("method", method).Msg("best-effort call failed")
			return nil, nil
		}
		c.logger.Error().Err(err).Str("method", method).Msg("bot API call failed")
		return nil, err
	}

	if resp.OK {
		c.metrics.ObserveGatewayCall(method, metrics.OutcomeOK)
	} else {
		c.metrics.ObserveGatewayCall(method, metrics.OutcomeAPIError)
		c.logger.Warn().
			Str("method", method).
			Int("status", resp.StatusCode).
			Bytes("body", resp.Body).
			Msg("bot API returned an error")
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, method string, form url.Values, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Err: stripURL(err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		OK:         httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		Body:       body,
	}, nil
}

// stripURL drops the request URL, which embeds the bot token, from err.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
