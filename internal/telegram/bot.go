package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/MML0/Assistant-Bot/internal/config"
	"github.com/MML0/Assistant-Bot/internal/model"
	"github.com/MML0/Assistant-Bot/internal/service"
)

const setModelPrefix = "setmodel_"

// Models offered through /setmodel. Switching away from the default is a pro
// feature.
var availableModels = []string{
	"gpt-4",
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
	"gpt-4.1-nano",
	"gpt-5",
	"gpt-5-mini",
	"gpt-5-nano",
}

type Bot struct {
	bot          *tele.Bot
	cfg          *config.Config
	users        *service.UserService
	chat         *service.ChatService
	entitlements *service.EntitlementService
	referrals    *service.ReferralService
	window       *service.ContextWindow
	commands     map[string]tele.HandlerFunc
}

func NewBot(
	cfg *config.Config,
	users *service.UserService,
	chat *service.ChatService,
	entitlements *service.EntitlementService,
	referrals *service.ReferralService,
	window *service.ContextWindow,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Telegram.BotToken,
		Poller: &tele.LongPoller{Timeout: 60 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:          bot,
		cfg:          cfg,
		users:        users,
		chat:         chat,
		entitlements: entitlements,
		referrals:    referrals,
		window:       window,
	}

	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerHandlers() {
	b.commands = map[string]tele.HandlerFunc{
		"/start":    b.handleStart,
		"/help":     b.handleHelp,
		"/setmodel": b.handleSetModel,
		"/newchat":  b.handleNewChat,
		"/getpro":   b.handleGetPro,
	}
	for verb, handler := range b.commands {
		b.bot.Handle(verb, handler)
	}

	b.bot.Handle(tele.OnText, b.handleText)
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

func (b *Bot) StartPolling(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	b.bot.Start()
}

func (b *Bot) GetBotUsername() string {
	return b.bot.Me.Username
}

func (b *Bot) handleStart(c tele.Context) error {
	now := time.Now()
	user, isNew, err := b.users.GetOrCreate(context.Background(), profileOf(c))
	if err != nil {
		return err
	}

	referrerChatID := service.ParseReferralToken(strings.ToLower(c.Message().Payload))

	outcome, err := b.referrals.Apply(context.Background(), isNew, referrerChatID, user, now)
	if err != nil {
		log.Printf("failed to apply referral for user %d: %v", user.ID, err)
	}

	switch outcome {
	case model.ReferralSelfReferral:
		return c.Send("⚠️ You cannot use your own referral link.\nBut welcome anyway! 😊")
	case model.ReferralRewarded:
		_ = b.SendText(referrerChatID, fmt.Sprintf(
			"🎉 Someone joined using your link!\nYou earned %d days of PRO! 🚀", b.referrals.RewardDays()))
	}

	if referrerChatID != 0 {
		return c.Send("👋 Welcome! Referral detected.\n\nType /help to see commands.\n\nAsk anything and I will reply to you!")
	}
	return c.Send("👋 Welcome! I'm your AI assistant.\nType /help to see commands.\n\nAsk anything and I will reply to you!")
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send("📌 Commands\n\n" +
		"/start – Start the bot\n" +
		"/help – Info & usage\n" +
		"/setmodel – Choose AI model\n" +
		"/newchat – Start a fresh conversation\n" +
		"/getpro – Unlock PRO features")
}

func (b *Bot) handleSetModel(c tele.Context) error {
	keyboard := &tele.ReplyMarkup{}

	rows := make([]tele.Row, 0, (len(availableModels)+1)/2)
	for i := 0; i < len(availableModels); i += 2 {
		btns := []tele.Btn{keyboard.Data(availableModels[i], setModelPrefix+availableModels[i])}
		if i+1 < len(availableModels) {
			btns = append(btns, keyboard.Data(availableModels[i+1], setModelPrefix+availableModels[i+1]))
		}
		rows = append(rows, keyboard.Row(btns...))
	}
	keyboard.Inline(rows...)

	return c.Send("Choose your model: (Only PRO users can switch models)", keyboard)
}

func (b *Bot) handleNewChat(c tele.Context) error {
	user, _, err := b.users.GetOrCreate(context.Background(), profileOf(c))
	if err != nil {
		return err
	}
	if err := b.window.Reset(context.Background(), user.ID); err != nil {
		log.Printf("failed to reset chat for user %d: %v", user.ID, err)
		return c.Send("Something went wrong, please try again.")
	}
	return c.Send("🧹 Started a new chat. Previous messages won't be used as context anymore.")
}

func (b *Bot) handleGetPro(c tele.Context) error {
	// Keyed on chat id like the user rows, so the reward resolves against the
	// same identity the link embeds.
	link := b.referrals.ReferralLink(b.bot.Me.Username, c.Chat().ID)

	return c.Send("💎 PRO Benefits\n" +
		"• Unlimited messages\n" +
		"• Long-term memory\n" +
		"• All models unlocked\n\n" +
		fmt.Sprintf("✨ Share this personal invite link with your friends. For each friend who starts the bot with it, you get %d days of PRO:\n\n", b.referrals.RewardDays()) +
		link)
}

func (b *Bot) handleText(c tele.Context) error {
	text := c.Text()
	if text == "" {
		return nil
	}

	// Registered endpoints only match the exact lowercase strings, so "/Start"
	// or "/HELP" arrives here. Commands must never reach the chat pipeline.
	if strings.HasPrefix(text, "/") {
		return b.dispatchCommand(c, text)
	}

	// Plain text is answered in private chats only; groups get commands.
	if c.Chat().Type != tele.ChatPrivate {
		return nil
	}

	now := time.Now()
	user, _, err := b.users.GetOrCreate(context.Background(), profileOf(c))
	if err != nil {
		log.Printf("failed to resolve user for chat %d: %v", c.Chat().ID, err)
		return c.Send("Something went wrong, please try again.")
	}

	_ = b.SendTypingIndicator(c.Chat().ID)

	reply, err := b.chat.HandleText(context.Background(), user, text, now)
	if err != nil {
		log.Printf("failed to handle message for user %d: %v", user.ID, err)
		return c.Send("Something went wrong, please try again.")
	}
	return c.Send(reply)
}

// dispatchCommand routes leading-slash text to the matching command handler,
// case-insensitively. The payload is re-attached to the message so handlers
// read it the same way as on an exact-match dispatch.
func (b *Bot) dispatchCommand(c tele.Context, text string) error {
	verb, payload := normalizeCommand(text)
	handler, ok := b.commands[verb]
	if !ok {
		if c.Chat().Type == tele.ChatPrivate {
			return c.Send("Unknown command. Type /help to see commands.")
		}
		return nil
	}
	if m := c.Message(); m != nil {
		m.Payload = payload
	}
	return handler(c)
}

// normalizeCommand splits command text into a lowercased verb (bot mention
// stripped) and its payload.
func normalizeCommand(text string) (string, string) {
	verb, payload, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(verb, '@'); at != -1 {
		verb = verb[:at]
	}
	return strings.ToLower(verb), strings.TrimSpace(payload)
}

func (b *Bot) handleCallback(c tele.Context) error {
	data := strings.TrimPrefix(c.Callback().Data, "\f")
	defer c.Respond()

	if m, ok := strings.CutPrefix(data, setModelPrefix); ok {
		return b.selectModel(c, m)
	}

	log.Printf("unknown callback data: %q", data)
	return nil
}

func (b *Bot) selectModel(c tele.Context, m string) error {
	if !validModel(m) {
		return c.Send("Unknown model.")
	}

	now := time.Now()
	user, _, err := b.users.GetOrCreate(context.Background(), profileOf(c))
	if err != nil {
		return err
	}

	ok, err := b.entitlements.SelectModel(context.Background(), user, m, now)
	if err != nil {
		log.Printf("failed to set model for user %d: %v", user.ID, err)
		return c.Send("Something went wrong, please try again.")
	}
	if !ok {
		return c.Send("🔒 Switching models is a PRO feature. Use /getpro to unlock it.")
	}
	return c.Send("✅ Your model has been updated to " + m)
}

func validModel(m string) bool {
	for _, known := range availableModels {
		if known == m {
			return true
		}
	}
	return false
}

// SendText delivers a plain text message to a chat.
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.bot.Send(&tele.User{ID: chatID}, text)
	return err
}

// SendTypingIndicator shows the "typing..." chat action.
func (b *Bot) SendTypingIndicator(chatID int64) error {
	return b.bot.Notify(&tele.User{ID: chatID}, tele.Typing)
}

func profileOf(c tele.Context) service.Profile {
	sender := c.Sender()
	return service.Profile{
		ChatID:    c.Chat().ID,
		Username:  optional(sender.Username),
		FirstName: optional(sender.FirstName),
		LastName:  optional(sender.LastName),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
