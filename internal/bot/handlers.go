package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/sheets_bot/internal/model"
	"github.com/ivanoskov/sheets_bot/internal/sheets"
)

const (
	welcomeText = "👋 I record your expenses and income into your own Google Sheet.\n\n" +
		"1. /auth — connect your Google account\n" +
		"2. /sheet <spreadsheet id> — pick the spreadsheet to write to\n" +
		"3. /add — record a transaction\n\n" +
		"/help shows the full command list."

	helpText = "/auth — connect your Google account\n" +
		"/sheet <spreadsheet id> — select the target spreadsheet\n" +
		"/add — record an expense or income\n" +
		"/report — summary for the current month\n" +
		"/reload — reload the category catalog\n" +
		"/logout — disconnect and delete stored credentials"

	needAuthText = "You are not connected yet. Use /auth to link your Google account."

	amountPromptText = "Enter the amount (for example 12.50):"

	commentPromptText = "Send the comment as a message, or \"-\" for none:"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	log := b.log.With().Int64("user_id", userID).Str("command", msg.Command()).Logger()

	lock := b.conv.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	switch msg.Command() {
	case "start":
		if err := b.users.UpsertUser(ctx, &model.User{UserID: userID, DisplayName: displayName(msg.From)}); err != nil {
			log.Error().Err(err).Msg("registering user failed")
		}
		b.reply(msg.Chat.ID, welcomeText)

	case "help":
		b.reply(msg.Chat.ID, helpText)

	case "auth":
		b.commandAuth(ctx, msg)

	case "logout":
		b.commandLogout(ctx, msg)

	case "sheet":
		b.commandSheet(ctx, msg)

	case "add":
		b.commandAdd(ctx, msg)

	case "report":
		b.commandReport(ctx, msg)

	case "reload":
		if err := b.catalog.Reload(); err != nil {
			log.Error().Err(err).Msg("reloading catalog failed")
			b.reply(msg.Chat.ID, "⚠️ Reload failed, the previous catalog stays in effect.")
			return
		}
		b.reply(msg.Chat.ID, "✅ Category catalog reloaded.")

	default:
		b.reply(msg.Chat.ID, "Unknown command. /help lists what I understand.")
	}
}

func (b *Bot) commandAuth(ctx context.Context, msg *tgbotapi.Message) {
	if b.auth.IsAuthenticated(ctx, msg.From.ID) {
		b.reply(msg.Chat.ID, "Your Google account is already connected. Use /logout first if you want to switch accounts.")
		return
	}

	authURL, state, err := b.auth.BeginAuthorization(msg.From.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("starting authorization failed")
		b.reply(msg.Chat.ID, "⚠️ Could not start authorization, try again later.")
		return
	}
	b.log.Info().Int64("user_id", msg.From.ID).Str("state", state[:8]).Msg("authorization started")

	reply := tgbotapi.NewMessage(msg.Chat.ID,
		"Open the link, choose your Google account and grant access. "+
			"The link is valid for 10 minutes and works once.")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔐 Connect Google account", authURL),
		),
	)
	b.send(reply)
}

func (b *Bot) commandLogout(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.conv.destroy(userID)

	if !b.auth.IsAuthenticated(ctx, userID) {
		if err := b.ops.ForgetUser(ctx, userID); err != nil {
			b.log.Error().Err(err).Int64("user_id", userID).Msg("forgetting user sheets failed")
		}
		b.reply(msg.Chat.ID, "You are not connected, nothing to log out.")
		return
	}

	b.auth.Revoke(ctx, userID, "")
	if err := b.ops.ForgetUser(ctx, userID); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("forgetting user sheets failed")
	}
	b.reply(msg.Chat.ID, "👋 Disconnected. Your credentials and sheet selection were deleted.")
}

func (b *Bot) commandSheet(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if !b.auth.IsAuthenticated(ctx, userID) {
		b.reply(msg.Chat.ID, needAuthText)
		return
	}

	spreadsheetID := strings.TrimSpace(msg.CommandArguments())
	if spreadsheetID == "" {
		b.reply(msg.Chat.ID, "Usage: /sheet <spreadsheet id>\n\nThe id is the long token in the spreadsheet URL between /d/ and /edit.")
		return
	}

	b.reply(msg.Chat.ID, "🔍 Checking the spreadsheet…")
	title, err := b.ops.SetupForUser(ctx, userID, spreadsheetID)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Str("spreadsheet_id", spreadsheetID).Msg("sheet setup failed")
		b.reply(msg.Chat.ID, sheetErrorText(err))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Recording into «%s». Use /add to add a transaction.", title))
}

func (b *Bot) commandAdd(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if !b.auth.IsAuthenticated(ctx, userID) {
		b.reply(msg.Chat.ID, needAuthText)
		return
	}

	if b.conv.get(userID) != nil {
		b.reply(msg.Chat.ID, "Previous unfinished entry discarded.")
	}
	pending := model.NewPendingTransaction(userID, b.now())
	b.conv.put(pending)

	b.log.Info().Int64("user_id", userID).Str("transaction_id", pending.ID).Msg("transaction started")

	reply := tgbotapi.NewMessage(msg.Chat.ID, "What are we recording?")
	reply.ReplyMarkup = b.typeKeyboard(pending.Type)
	b.send(reply)
}

func (b *Bot) commandReport(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if !b.auth.IsAuthenticated(ctx, userID) {
		b.reply(msg.Chat.ID, needAuthText)
		return
	}

	report, err := b.reports.MonthlyReport(ctx, userID)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("building report failed")
		b.reply(msg.Chat.ID, sheetErrorText(err))
		return
	}

	text := tgbotapi.NewMessage(msg.Chat.ID, report.Text())
	text.ParseMode = tgbotapi.ModeMarkdown
	b.send(text)

	image, err := b.charts.MonthlyDashboard(report)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("rendering chart failed")
		return
	}
	if image == nil {
		return
	}
	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: "report.png", Bytes: image})
	b.send(photo)
}

// handleCallback runs one button press through the state machine.
func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Error().Err(err).Msg("answering callback failed")
	}

	// Telegram omits Message for callbacks on old or inaccessible
	// messages; there is nothing to edit then.
	if query.Message == nil {
		return
	}

	userID := query.From.ID
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	log := b.log.With().Int64("user_id", userID).Str("data", query.Data).Logger()

	action, err := ParseAction(query.Data)
	if err != nil {
		log.Warn().Msg("unparseable callback data")
		return
	}

	lock := b.conv.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pending := b.conv.get(userID)
	if pending == nil {
		b.edit(chatID, messageID, "This entry has expired. Start a new one with /add.", nil)
		return
	}

	switch action.Kind {
	case ActionSelector:
		b.callbackSelector(chatID, messageID, pending, action.Arg)
	case ActionCategory:
		b.callbackCategory(chatID, messageID, pending, action.Arg)
	case ActionSubcategory:
		b.callbackSubcategory(chatID, messageID, pending, action.Arg)
	case ActionBack:
		b.callbackBack(chatID, messageID, pending)
	case ActionComment:
		b.callbackComment(ctx, chatID, messageID, pending, action.Arg)
	case ActionCancel:
		b.conv.destroy(userID)
		b.edit(chatID, messageID, "✖️ Entry cancelled.", nil)
	}
}

// callbackSelector switches between expense and income entry. Any
// category choice made under the other type is discarded.
func (b *Bot) callbackSelector(chatID int64, messageID int, pending *model.PendingTransaction, arg string) {
	if pending.State != model.StateTypeSelected {
		return
	}

	newType := model.TransactionType(arg)
	if newType != model.TypeExpense && newType != model.TypeIncome {
		return
	}
	if pending.Type == newType {
		return
	}
	pending.Type = newType
	pending.Category = ""
	pending.Subcategory = ""

	kb := b.typeKeyboard(pending.Type)
	b.edit(chatID, messageID, "What are we recording?", &kb)
}

func (b *Bot) callbackCategory(chatID int64, messageID int, pending *model.PendingTransaction, name string) {
	if pending.State != model.StateTypeSelected {
		return
	}

	switch pending.Type {
	case model.TypeIncome:
		if !b.catalog.HasIncome(name) {
			return
		}
		pending.Category = name
		// Income has no subcategory tier; the category stands in.
		pending.Subcategory = name
		pending.State = model.StateAwaitingAmount
		kb := backRowKeyboard()
		b.edit(chatID, messageID, fmt.Sprintf("💰 %s\n\n%s", name, amountPromptText), &kb)

	default:
		subs, ok := b.catalog.Subcategories(name)
		if !ok {
			return
		}
		pending.Category = name
		if len(subs) == 0 {
			pending.Subcategory = name
			pending.State = model.StateAwaitingAmount
			kb := backRowKeyboard()
			b.edit(chatID, messageID, fmt.Sprintf("💸 %s\n\n%s", name, amountPromptText), &kb)
			return
		}
		pending.State = model.StateCategorySelected
		kb := b.subcategoryKeyboard(name)
		b.edit(chatID, messageID, fmt.Sprintf("💸 %s — pick a subcategory:", name), &kb)
	}
}

func (b *Bot) callbackSubcategory(chatID int64, messageID int, pending *model.PendingTransaction, name string) {
	if pending.State != model.StateCategorySelected {
		return
	}
	subs, _ := b.catalog.Subcategories(pending.Category)
	found := false
	for _, sub := range subs {
		if sub == name {
			found = true
			break
		}
	}
	if !found {
		return
	}

	pending.Subcategory = name
	pending.State = model.StateAwaitingAmount
	kb := backRowKeyboard()
	b.edit(chatID, messageID, fmt.Sprintf("💸 %s / %s\n\n%s", pending.Category, name, amountPromptText), &kb)
}

// callbackBack steps one state backwards, undoing the data that state
// had filled in.
func (b *Bot) callbackBack(chatID int64, messageID int, pending *model.PendingTransaction) {
	switch pending.State {
	case model.StateCategorySelected:
		pending.Category = ""
		pending.Subcategory = ""
		pending.State = model.StateTypeSelected
		kb := b.typeKeyboard(pending.Type)
		b.edit(chatID, messageID, "What are we recording?", &kb)

	case model.StateAwaitingAmount:
		pending.Amount = decimal.Zero
		pending.AmountSet = false
		if pending.Type == model.TypeExpense {
			if subs, ok := b.catalog.Subcategories(pending.Category); ok && len(subs) > 0 {
				pending.Subcategory = ""
				pending.State = model.StateCategorySelected
				kb := b.subcategoryKeyboard(pending.Category)
				b.edit(chatID, messageID, fmt.Sprintf("💸 %s — pick a subcategory:", pending.Category), &kb)
				return
			}
		}
		pending.Category = ""
		pending.Subcategory = ""
		pending.State = model.StateTypeSelected
		kb := b.typeKeyboard(pending.Type)
		b.edit(chatID, messageID, "What are we recording?", &kb)

	case model.StateAwaitingCommentDecision:
		pending.Amount = decimal.Zero
		pending.AmountSet = false
		pending.State = model.StateAwaitingAmount
		kb := backRowKeyboard()
		b.edit(chatID, messageID, amountPromptText, &kb)

	case model.StateAwaitingComment:
		pending.State = model.StateAwaitingCommentDecision
		kb := commentKeyboard()
		b.edit(chatID, messageID, "Add a comment?", &kb)
	}
}

func (b *Bot) callbackComment(ctx context.Context, chatID int64, messageID int, pending *model.PendingTransaction, arg string) {
	if pending.State != model.StateAwaitingCommentDecision {
		return
	}

	switch arg {
	case "yes":
		pending.State = model.StateAwaitingComment
		kb := backRowKeyboard()
		b.edit(chatID, messageID, commentPromptText, &kb)
	case "no":
		pending.Comment = ""
		b.edit(chatID, messageID, "Saving…", nil)
		b.commit(ctx, chatID, pending)
	}
}

// handleMessage routes free text. A comment prompt always wins over an
// amount prompt, so a comment that happens to look like a number is
// never misread.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	lock := b.conv.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pending := b.conv.get(userID)
	if pending == nil {
		return
	}

	switch pending.State {
	case model.StateAwaitingComment:
		comment := strings.TrimSpace(msg.Text)
		if comment == "-" {
			comment = ""
		}
		pending.Comment = comment
		b.commit(ctx, msg.Chat.ID, pending)

	case model.StateAwaitingAmount:
		amount, err := parseAmount(msg.Text)
		if err != nil {
			reply := tgbotapi.NewMessage(msg.Chat.ID, "That doesn't look like a positive amount. "+amountPromptText)
			kb := backRowKeyboard()
			reply.ReplyMarkup = kb
			b.send(reply)
			return
		}
		pending.Amount = amount
		pending.AmountSet = true
		pending.State = model.StateAwaitingCommentDecision
		reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("Amount: %s\n\nAdd a comment?", amount.String()))
		reply.ReplyMarkup = commentKeyboard()
		b.send(reply)
	}
}

// parseAmount accepts a positive decimal, tolerating a comma as the
// decimal separator.
func parseAmount(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("bot: amount must be positive")
	}
	return amount, nil
}

// commit appends the finished transaction to the user's sheet. The
// pending transaction is destroyed whether the append works or not;
// a failed entry is re-entered from scratch, never retried blindly.
func (b *Bot) commit(ctx context.Context, chatID int64, pending *model.PendingTransaction) {
	b.conv.destroy(pending.UserID)

	sheetName := sheets.SheetExpenses
	if pending.Type == model.TypeIncome {
		sheetName = sheets.SheetIncome
	}

	err := b.ops.AppendRow(ctx, pending.UserID, sheetName, b.row(pending))
	if err != nil {
		b.log.Error().Err(err).
			Int64("user_id", pending.UserID).
			Str("transaction_id", pending.ID).
			Msg("appending transaction failed")
		b.reply(chatID, sheetErrorText(err)+"\n\nThe entry was not saved; start again with /add.")
		return
	}

	b.log.Info().
		Int64("user_id", pending.UserID).
		Str("transaction_id", pending.ID).
		Str("sheet", sheetName).
		Msg("transaction recorded")

	label := pending.Category
	if pending.Type == model.TypeExpense && pending.Subcategory != pending.Category {
		label = pending.Category + " / " + pending.Subcategory
	}
	b.reply(chatID, fmt.Sprintf("✅ Saved: %s — %s", label, pending.Amount.String()))
}

// row lays out the spreadsheet row. Income sheets carry no subcategory
// column.
func (b *Bot) row(pending *model.PendingTransaction) []string {
	date := pending.Date.Format("2006-01-02")
	timestamp := b.now().Format("2006-01-02 15:04:05")
	user := fmt.Sprintf("%d", pending.UserID)

	if pending.Type == model.TypeIncome {
		return []string{date, user, pending.Category, pending.Amount.String(), timestamp, pending.Comment}
	}
	return []string{date, user, pending.Category, pending.Subcategory, pending.Amount.String(), timestamp, pending.Comment}
}

func (b *Bot) edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if kb != nil {
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *kb))
		return
	}
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}

// sheetErrorText maps spreadsheet failures to user-facing advice.
func sheetErrorText(err error) string {
	var accessErr *sheets.SheetAccessError
	if errors.As(err, &accessErr) {
		switch accessErr.Cause {
		case sheets.CauseNoActiveSheet:
			return "No spreadsheet selected yet. Use /sheet <spreadsheet id> first."
		case sheets.CauseNotFound:
			return "⚠️ Spreadsheet not found. Check the id and try again."
		case sheets.CausePermission:
			return "⚠️ I don't have access to that spreadsheet. Make sure your Google account can edit it."
		case sheets.CauseUnauthorized:
			return "⚠️ Your Google authorization has expired. Run /auth again."
		}
	}
	return "⚠️ Something went wrong talking to Google Sheets, try again later."
}
