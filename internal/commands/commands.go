// Package commands handles the text commands chats send to the bot.
package commands

import (
	"context"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/detect"
	"ironfly/internal/dom6"
	"ironfly/internal/subscription"
	"strings"
)

const (
	report_handler_start = "handler.start"
	report_handler_stop  = "handler.stop"
	report_handler_list  = "handler.list"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) dom6.Outcome
}

type Sender interface {
	Send(ctx context.Context, recipients []string, text string) error
}

type Handler struct {
	registry subscription.Registry
	fetcher  Fetcher
	sender   Sender
	baseURL  string
	tel      telemetry.API
}

func NewHandler(
	registry subscription.Registry,
	fetcher Fetcher,
	sender Sender,
	baseURL string,
	tel telemetry.API,
) Handler {
	assert.NotNil(fetcher)
	assert.NotNil(sender)
	assert.NotNil(tel)

	if baseURL == "" {
		baseURL = dom6.DefaultBaseURL
	}
	return Handler{
		registry: registry,
		fetcher:  fetcher,
		sender:   sender,
		baseURL:  baseURL,
		tel:      telemetry.NewScopedAPI("commands", tel),
	}
}

func (h Handler) reply(ctx context.Context, chatID, text string) error {
	return h.sender.Send(ctx, []string{chatID}, text)
}

// Start subscribes the chat to a game given by name or status page url. The
// page is fetched right away so the chat learns whether the game exists and
// gets its current status.
func (h Handler) Start(ctx context.Context, chatID, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return h.reply(ctx, chatID, detect.StartUsage)
	}

	target := dom6.ResolveTarget(input, h.baseURL)
	outcome := h.fetcher.Fetch(ctx, target)
	switch outcome.Kind {
	case dom6.OutcomeOK:
	case dom6.OutcomeNotFound:
		return h.reply(ctx, chatID, detect.NotFound(target))
	default:
		h.tel.ReportWarning(report_handler_start, outcome.Err, target, outcome.Kind.String())
		return h.reply(ctx, chatID, detect.AccessError)
	}

	current := outcome.Snapshot
	current.URL = target
	tracked, err := h.registry.Track(ctx, current, chatID)
	if err != nil {
		h.tel.ReportBroken(report_handler_start, err, target)
		return h.reply(ctx, chatID, detect.AccessError)
	}

	if len(tracked.Notify) > 0 {
		for _, msg := range tracked.Pending {
			err := h.sender.Send(ctx, tracked.Notify, msg.Text())
			if err != nil {
				h.tel.ReportWarning(report_handler_start, err, tracked.Snapshot.GameName, "pending notification")
			}
		}
	}

	err = h.reply(ctx, chatID, detect.Subscribed(tracked.Snapshot.GameName))
	if err != nil {
		return err
	}
	return h.reply(ctx, chatID, detect.StatusDigest(tracked.Snapshot))
}

// Stop unsubscribes the chat from a game.
func (h Handler) Stop(ctx context.Context, chatID, gameName string) error {
	gameName = strings.TrimSpace(gameName)
	if gameName == "" {
		return h.reply(ctx, chatID, detect.StopUsage)
	}

	res, err := h.registry.RemoveSubscriber(ctx, gameName, chatID)
	if err != nil {
		h.tel.ReportBroken(report_handler_stop, err, gameName)
		return h.reply(ctx, chatID, detect.AccessError)
	}
	if res == subscription.Removed {
		return h.reply(ctx, chatID, detect.Unsubscribed(gameName))
	}
	return h.reply(ctx, chatID, detect.NotSubscribed(gameName))
}

// List tells the chat which games it is subscribed to.
func (h Handler) List(ctx context.Context, chatID string) error {
	games, err := h.registry.GamesOf(ctx, chatID)
	if err != nil {
		h.tel.ReportBroken(report_handler_list, err, chatID)
		return h.reply(ctx, chatID, detect.AccessError)
	}
	return h.reply(ctx, chatID, detect.SubscriptionList(games))
}

func (h Handler) Help(ctx context.Context, chatID string) error {
	return h.reply(ctx, chatID, detect.Help)
}

// Dispatch routes a chat message to its command. Verbs are case insensitive
// and may be written as telegram commands ("/stop@ironfly_bot te26"). Text
// that is not a command is ignored.
func (h Handler) Dispatch(ctx context.Context, chatID, text string) error {
	text = strings.TrimSpace(text)
	verb, arg, _ := strings.Cut(text, " ")
	slash := strings.HasPrefix(verb, "/")
	verb = strings.TrimPrefix(verb, "/")
	verb, _, _ = strings.Cut(verb, "@")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "start":
		// telegram sends a bare "/start" when a chat first opens the bot
		if slash && arg == "" {
			return h.Help(ctx, chatID)
		}
		return h.Start(ctx, chatID, arg)
	case "stop":
		return h.Stop(ctx, chatID, arg)
	case "list":
		return h.List(ctx, chatID)
	case "help":
		return h.Help(ctx, chatID)
	}
	h.tel.ReportDebug("ignoring message", chatID, text)
	return nil
}
