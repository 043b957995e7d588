// Package bot hosts the Telegram transport and the guided conversation
// state machine that turns button presses and text messages into
// spreadsheet rows.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ivanoskov/sheets_bot/internal/category"
	"github.com/ivanoskov/sheets_bot/internal/model"
	"github.com/ivanoskov/sheets_bot/internal/service"
)

// Authorizer is the slice of the authorization manager the bot needs.
type Authorizer interface {
	BeginAuthorization(userID int64) (authURL, state string, err error)
	IsAuthenticated(ctx context.Context, userID int64) bool
	Revoke(ctx context.Context, userID int64, tokenOverride string) bool
}

// SheetOperations is the spreadsheet operations layer contract.
type SheetOperations interface {
	SetupForUser(ctx context.Context, userID int64, spreadsheetID string) (string, error)
	AppendRow(ctx context.Context, userID int64, sheetName string, values []string) error
	ForgetUser(ctx context.Context, userID int64) error
}

// Reporter builds the monthly report for /report.
type Reporter interface {
	MonthlyReport(ctx context.Context, userID int64) (*service.Report, error)
}

// ChartRenderer renders the report dashboard image; a nil image means
// there was nothing to draw.
type ChartRenderer interface {
	MonthlyDashboard(report *service.Report) ([]byte, error)
}

// UserStore records users on first interaction.
type UserStore interface {
	UpsertUser(ctx context.Context, user *model.User) error
}

// sender abstracts *tgbotapi.BotAPI so handlers can be tested against a
// recording fake.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api     sender
	tg      *tgbotapi.BotAPI
	auth    Authorizer
	ops     SheetOperations
	reports Reporter
	charts  ChartRenderer
	users   UserStore
	catalog *category.Catalog
	conv    *conversations
	log     zerolog.Logger
	now     func() time.Time
}

func New(token string, auth Authorizer, ops SheetOperations, reports Reporter, charts ChartRenderer, users UserStore, catalog *category.Catalog, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(api, auth, ops, reports, charts, users, catalog, log)
	b.tg = api
	return b, nil
}

// newBot is the network-free constructor the tests use.
func newBot(api sender, auth Authorizer, ops SheetOperations, reports Reporter, charts ChartRenderer, users UserStore, catalog *category.Catalog, log zerolog.Logger) *Bot {
	return &Bot{
		api:     api,
		auth:    auth,
		ops:     ops,
		reports: reports,
		charts:  charts,
		users:   users,
		catalog: catalog,
		conv:    newConversations(),
		log:     log.With().Str("component", "bot").Logger(),
		now:     time.Now,
	}
}

// Start registers the command menu and consumes updates via long
// polling until ctx is cancelled. Each update is handled on its own
// goroutine; per-user ordering is enforced by the conversation locks,
// not by the transport.
func (b *Bot) Start(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "What this bot does"},
		tgbotapi.BotCommand{Command: "help", Description: "Command reference"},
		tgbotapi.BotCommand{Command: "auth", Description: "Connect your Google account"},
		tgbotapi.BotCommand{Command: "sheet", Description: "Select the target spreadsheet"},
		tgbotapi.BotCommand{Command: "add", Description: "Record a transaction"},
		tgbotapi.BotCommand{Command: "report", Description: "Current month summary"},
		tgbotapi.BotCommand{Command: "reload", Description: "Reload category catalog"},
		tgbotapi.BotCommand{Command: "logout", Description: "Disconnect and forget credentials"},
	)); err != nil {
		return err
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := b.tg.GetUpdatesChan(cfg)

	b.log.Info().Msg("bot started")
	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one inbound update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// NotifyAuthorized tells the user the callback exchange went through.
// The OAuth callback server calls this after a successful exchange.
func (b *Bot) NotifyAuthorized(userID int64) {
	// Runs the fresh credential through the validation path once, so the
	// first /sheet or /add does not pay for it.
	if !b.auth.IsAuthenticated(context.Background(), userID) {
		b.log.Warn().Int64("user_id", userID).Msg("credential not usable right after exchange")
	}

	msg := tgbotapi.NewMessage(userID,
		"✅ *Authorization successful*\n\n"+
			"Your Google account is connected.\n\n"+
			"• /sheet <spreadsheet id> — select the spreadsheet to write to\n"+
			"• /add — record a transaction")
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("sending authorization confirmation failed")
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error().Err(err).Msg("sending message failed")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	if name == "" {
		name = user.UserName
	}
	return name
}
