// Package tg runs the Telegram bot: transaction notifications plus balance
// and history lookups.
package tg

import (
	"context"
	"fmt"

	"github.com/pvzzle/ethwallet/internal/bus"
	"github.com/pvzzle/ethwallet/internal/ledger"
	klog "github.com/pvzzle/ethwallet/internal/log"
	"github.com/pvzzle/ethwallet/internal/storage"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// Ledger is the read side of ledger.Service used by the bot.
type Ledger interface {
	GetBalance(ctx context.Context, address string) (ledger.Balance, error)
	GetHistory(ctx context.Context, address string) ([]storage.TxRecord, error)
}

const startText = "Hi! I report wallet transactions recorded by the backend.\n\n" +
	"/balance <address> - current balance\n" +
	"/history <address> - last 10 transactions"

const promptAddress = "Send the address (0x...):"

type Service struct {
	bot      *tgbot.Bot
	ledger   Ledger
	notifyCh <-chan bus.Notification

	state *StateStore
	log   zerolog.Logger
}

func NewService(b *tgbot.Bot, l Ledger, notifyCh <-chan bus.Notification) *Service {
	s := &Service{
		bot:      b,
		ledger:   l,
		notifyCh: notifyCh,
		state:    NewStateStore(),
		log:      klog.WithComponent("tg"),
	}
	if b != nil {
		s.registerHandlers()
	}
	return s
}

func (s *Service) registerHandlers() {
	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, s.onText)
}

func (s *Service) StartNotifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.notifyCh:
			_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: n.ChatID,
				Text:   n.Text,
			})
			if err != nil {
				s.log.Error().Err(err).Int64("chat_id", n.ChatID).Msg("send notify failed")
			}
		}
	}
}

func (s *Service) onText(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID

	reply := s.answer(ctx, chatID, upd.Message.Text)
	if reply == "" {
		return
	}
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("send reply failed")
	}
}

// answer computes the reply to a chat message. A command without an
// address argument asks for one and takes the next message as the address.
func (s *Service) answer(ctx context.Context, chatID int64, text string) string {
	cmd, arg := parseCommand(text)

	switch cmd {
	case cmdStart:
		s.state.Set(chatID, StateIdle)
		return startText
	case cmdBalance:
		if arg == "" {
			s.state.Set(chatID, StateAwaitBalanceAddress)
			return promptAddress
		}
		s.state.Set(chatID, StateIdle)
		return s.balance(ctx, arg)
	case cmdHistory:
		if arg == "" {
			s.state.Set(chatID, StateAwaitHistoryAddress)
			return promptAddress
		}
		s.state.Set(chatID, StateIdle)
		return s.history(ctx, arg)
	case "":
	default:
		return "Unknown command. Use /start."
	}

	st := s.state.Get(chatID)
	if st != StateIdle && arg == "" {
		return promptAddress
	}

	switch st {
	case StateAwaitBalanceAddress:
		s.state.Set(chatID, StateIdle)
		return s.balance(ctx, arg)
	case StateAwaitHistoryAddress:
		s.state.Set(chatID, StateIdle)
		return s.history(ctx, arg)
	default:
		return "Use /start to see the commands."
	}
}

func (s *Service) balance(ctx context.Context, address string) string {
	b, err := s.ledger.GetBalance(ctx, address)
	if err != nil {
		s.log.Warn().Err(err).Str("address", address).Msg("balance lookup failed")
		return fmt.Sprintf("Could not fetch balance (%s).", ledger.KindOf(err))
	}
	return FormatBalance(b)
}

func (s *Service) history(ctx context.Context, address string) string {
	txs, err := s.ledger.GetHistory(ctx, address)
	if err != nil {
		s.log.Warn().Err(err).Str("address", address).Msg("history lookup failed")
		return fmt.Sprintf("Could not read history (%s).", ledger.KindOf(err))
	}
	return FormatHistory(address, txs)
}
