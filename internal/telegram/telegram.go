// Package telegram talks to the Telegram Bot API: it delivers notifications
// and polls the bot's inbox for chat commands.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/telemetry"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_send = "client.send"
	report_client_poll = "client.poll"
)

const (
	DefaultAPIURL  = "https://api.telegram.org"
	DefaultTimeout = 10 * time.Second
	// telegram allows about 30 messages per second across all chats
	defaultMessagesPerSecond = 25
	pollLimit                = 100
)

var ErrNoToken = errors.New("telegram: bot token is empty")

// Command is a text message a chat sent to the bot.
type Command struct {
	ChatID string
	Text   string
}

type Options struct {
	Token string
	// zero value means DefaultAPIURL
	APIURL  string
	Timeout time.Duration
}

type apiResponse[T any] struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
	Result      T      `json:"result"`
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type sendMessageRequest struct {
	ChatID    any    `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type Client struct {
	http *resty.Client
	tel  telemetry.API

	mutex  sync.Mutex
	offset int64
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	if opts.Token == "" {
		return nil, ErrNoToken
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	tel = telemetry.NewScopedAPI("telegram", tel)

	httpClient := resty.New()
	httpClient.SetBaseURL(fmt.Sprintf("%s/bot%s", strings.TrimRight(opts.APIURL, "/"), opts.Token))
	httpClient.SetTimeout(opts.Timeout)

	rateLimiter := rate.NewLimiter(defaultMessagesPerSecond, defaultMessagesPerSecond)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, "ironfly/telegram", tel)

	return &Client{
		http: httpClient,
		tel:  tel,
	}, nil
}

// chatID sends numeric ids as numbers, the Bot API accepts @channel names
// as strings.
func chatID(id string) any {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return id
	}
	return n
}

func (c *Client) sendOne(ctx context.Context, recipient, text string) error {
	var out apiResponse[any]
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{
			ChatID:    chatID(recipient),
			Text:      text,
			ParseMode: "HTML",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}
	if res.IsError() || !out.Ok {
		return fmt.Errorf("send to %s: %s: %s", recipient, res.Status(), out.Description)
	}
	return nil
}

// Send delivers text to every recipient once. A failed delivery does not
// stop the others, all failures are returned together.
func (c *Client) Send(ctx context.Context, recipients []string, text string) error {
	seen := make(map[string]struct{}, len(recipients))
	var errs []error
	for _, recipient := range recipients {
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}

		err := c.sendOne(ctx, recipient, text)
		if err != nil {
			c.tel.ReportWarning(report_client_send, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Poll returns the text messages received since the last call.
func (c *Client) Poll(ctx context.Context) ([]Command, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("timeout", "0").
		SetQueryParam("limit", strconv.Itoa(pollLimit))
	if c.offset > 0 {
		req.SetQueryParam("offset", strconv.FormatInt(c.offset, 10))
	}

	var out apiResponse[[]update]
	res, err := req.
		SetResult(&out).
		SetError(&out).
		Get("/getUpdates")
	if err != nil {
		c.tel.ReportWarning(report_client_poll, err)
		return nil, fmt.Errorf("get updates: %w", err)
	}
	if res.IsError() || !out.Ok {
		err = fmt.Errorf("get updates: %s: %s", res.Status(), out.Description)
		c.tel.ReportWarning(report_client_poll, err)
		return nil, err
	}

	var commands []Command
	for _, u := range out.Result {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		if u.Message == nil || u.Message.Text == "" {
			continue
		}
		commands = append(commands, Command{
			ChatID: strconv.FormatInt(u.Message.Chat.ID, 10),
			Text:   u.Message.Text,
		})
	}
	return commands, nil
}
