// texts.go собирает все пользовательские тексты бота в одном месте.
// Тексты на английском: основная аудитория платформы англоязычная.
package bot

import (
	"errors"
	"fmt"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/features/wallet"
)

func isErr(err, target error) bool { return errors.Is(err, target) }

const (
	textWelcome = "Welcome to the anonymous chat!\n\n" +
		"Pick your role to get started:\n" +
		"/male — pay minutes to chat\n" +
		"/female — earn for your time"

	textHelp = "Commands:\n" +
		"/find — find a chat partner\n" +
		"/stop — end the current chat\n" +
		"/next — end the chat and search again\n" +
		"/online — start receiving chats (verified profiles)\n" +
		"/offline — stop receiving chats\n" +
		"/balance — your balance\n" +
		"/withdraw — withdraw your earnings\n" +
		"/ref — your invite link"

	textMaleActivated = "You're all set! You start with free trial minutes.\n" +
		"Use /find to get matched."

	textFemalePending = "Thanks! Your profile has been submitted for review.\n" +
		"We'll let you know once it's approved."

	textSearching = "Looking for a partner... You'll be notified as soon as someone is available."

	textMatched = "Partner found! Say hi — everything you send here is forwarded anonymously.\n" +
		"Use /stop to end the chat."

	textChatEnded        = "Chat ended. Use /find to start a new one."
	textChatEndedPartner = "Your partner has left the chat."
	textChatExpired      = "Time's up! The chat has ended. Use /find to start a new one."
	textNoActiveChat     = "You're not in a chat right now."
	textWentOnline       = "You're online. We'll connect you as soon as there's a match."
	textWentOffline      = "You're offline now. Use /online when you're ready again."
)

// errorText переводит доменную ошибку в ответ пользователю.
func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case isErr(err, common.ErrProfileIncomplete):
		return "Pick a role first: /male or /female."
	case isErr(err, common.ErrNotVerified):
		return "Your profile is still under review. We'll notify you once it's approved."
	case isErr(err, common.ErrRoleMismatch):
		return "This command is not available for your role."
	case isErr(err, common.ErrRoleLocked):
		return "Your role is already confirmed and can't be changed."
	case isErr(err, common.ErrInsufficientBalance):
		return "Not enough minutes on your balance. Top up with Telegram Stars to continue."
	case isErr(err, common.ErrAlreadyInSession):
		return "You're already in a chat. Use /stop to end it first."
	case isErr(err, common.ErrNoBalance):
		return "You have nothing to withdraw yet."
	default:
		return "Something went wrong, please try again later."
	}
}

// balanceText форматирует баланс в зависимости от роли.
func balanceText(isFemale bool, w *wallet.Wallet) string {
	if isFemale {
		return fmt.Sprintf(
			"Your earnings:\n"+
				"Pending: $%.2f\n"+
				"Withdrawable: $%.2f\n"+
				"Lifetime: $%.2f\n\n"+
				"Use /withdraw to request a payout.",
			w.PendingBalance, w.WithdrawableBalance, w.LifetimeEarnings,
		)
	}
	return fmt.Sprintf(
		"Your balance: %d min\n"+
			"Free: %d min\n"+
			"Referral: %d min\n"+
			"Purchased: %d min",
		w.Available(), w.FreeMinutes, w.ReferralMinutes, w.PaidMinutes,
	)
}

func withdrawalCreatedText(wd *wallet.Withdrawal) string {
	return fmt.Sprintf(
		"Withdrawal request %s for $%.2f created.\n"+
			"You'll be notified once it's paid out.",
		wd.Reference, wd.Amount,
	)
}

func refLinkText(botUsername string, userID int64) string {
	return fmt.Sprintf(
		"Invite friends and earn bonus minutes!\n"+
			"Your link: https://t.me/%s?start=ref_%d",
		botUsername, userID,
	)
}
