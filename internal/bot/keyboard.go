package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivanoskov/sheets_bot/internal/model"
)

// typeKeyboard shows the expense/income selector row followed by the
// categories of the active type, one per row.
func (b *Bot) typeKeyboard(active model.TransactionType) tgbotapi.InlineKeyboardMarkup {
	expenseLabel, incomeLabel := "💸 Expenses", "💰 Income"
	if active == model.TypeExpense {
		expenseLabel = "• 💸 Expenses •"
	} else {
		incomeLabel = "• 💰 Income •"
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData(expenseLabel, Action{Kind: ActionSelector, Arg: string(model.TypeExpense)}.Encode()),
			tgbotapi.NewInlineKeyboardButtonData(incomeLabel, Action{Kind: ActionSelector, Arg: string(model.TypeIncome)}.Encode()),
		},
	}

	var names []string
	if active == model.TypeExpense {
		names = b.catalog.ExpenseNames()
	} else {
		names = b.catalog.IncomeNames()
	}
	for _, name := range names {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(name, Action{Kind: ActionCategory, Arg: name}.Encode()),
		))
	}

	rows = append(rows, cancelRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// subcategoryKeyboard lists the subcategories of an expense category.
func (b *Bot) subcategoryKeyboard(category string) tgbotapi.InlineKeyboardMarkup {
	subs, _ := b.catalog.Subcategories(category)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subs)+1)
	for _, sub := range subs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(sub, Action{Kind: ActionSubcategory, Arg: sub}.Encode()),
		))
	}
	rows = append(rows, backCancelRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// commentKeyboard is the yes/no choice after the amount.
func commentKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Add a comment", Action{Kind: ActionComment, Arg: "yes"}.Encode()),
			tgbotapi.NewInlineKeyboardButtonData("➡️ Skip", Action{Kind: ActionComment, Arg: "no"}.Encode()),
		),
		backCancelRow(),
	)
}

// backRowKeyboard is shown with free-text prompts so the user can still
// step back or abort.
func backRowKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backCancelRow())
}

func backCancelRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Back", Action{Kind: ActionBack}.Encode()),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", Action{Kind: ActionCancel}.Encode()),
	)
}

func cancelRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", Action{Kind: ActionCancel}.Encode()),
	)
}
