package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "car-inspect/internal/application"
	"car-inspect/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я бот для осмотра автомобиля по фото.

📸 Отправьте мне фото машины, и я оценю повреждения кузова и чистоту.

📋 Команды:
/check — начать проверку автомобиля
/last — последний отчёт
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото автомобиля
2️⃣ Бот прогонит его через модели повреждений и классификатор чистоты
3️⃣ Вы получите отчёт: повреждённость, покрытие, типы дефектов и чистота

💡 Рекомендации:
• Снимайте при хорошем освещении
• Кузов должен занимать большую часть кадра
• Фото должно быть чётким

📋 Команды:
/check — начать проверку
/last — последний отчёт
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото автомобиля для проверки."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото автомобиля для проверки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgBusy            = "⏳ Предыдущее фото ещё обрабатывается, подождите."
	msgNoReport        = "📭 Отчётов пока нет. Отправьте фото автомобиля."
	msgBadImage        = "⚠️ Не удалось прочитать изображение. Попробуйте другое фото."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
)

// DefaultMaxPhotoBytes предел размера скачиваемого фото.
const DefaultMaxPhotoBytes = 20 << 20

// botAPI часть tgbotapi.BotAPI, которой пользуется бот.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота
type Bot struct {
	api        botAPI
	users      *app.UserService
	inspection *app.InspectionService
	httpClient *http.Client
	maxPhoto   int64
	log        *zap.SugaredLogger
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, inspection *app.InspectionService, log *zap.SugaredLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(api, users, inspection, log)
	b.log.Infow("authorized on account", "username", api.Self.UserName)
	return b, nil
}

func newBot(api botAPI, users *app.UserService, inspection *app.InspectionService, log *zap.SugaredLogger) *Bot {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bot{
		api:        api,
		users:      users,
		inspection: inspection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxPhoto:   DefaultMaxPhotoBytes,
		log:        log,
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Errorw("get user", "user", msg.From.ID, "error", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if _, err := b.users.Cancel(ctx, user.ID, chatID); err != nil {
			b.log.Warnw("reset user state", "user", user.ID, "error", err)
		}
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		if user.Busy() {
			b.sendMessage(chatID, msgBusy)
			return
		}
		if _, err := b.users.BeginCheck(ctx, user.ID, chatID); err != nil {
			b.log.Warnw("begin check", "user", user.ID, "error", err)
		}
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "cancel":
		if _, err := b.users.Cancel(ctx, user.ID, chatID); err != nil {
			b.log.Warnw("cancel", "user", user.ID, "error", err)
		}
		b.sendMessage(chatID, msgCancelled)

	case "last":
		out, err := b.inspection.LastReport(ctx, user.ID, chatID)
		switch {
		case app.IsNoReport(err):
			b.sendMessage(chatID, msgNoReport)
		case err != nil:
			b.log.Errorw("last report", "user", user.ID, "error", err)
			b.sendMessage(chatID, msgProcessingError)
		default:
			b.sendOutput(chatID, out)
		}

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handlePhoto обрабатывает входящее фото
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	b.sendMessage(chatID, msgProcessing)

	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.log.Errorw("download photo", "user", msg.From.ID, "error", err)
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	out, err := b.inspection.ProcessPhoto(ctx, msg.From.ID, chatID, imageData)
	switch {
	case errors.Is(err, app.ErrInspectionRunning):
		b.sendMessage(chatID, msgBusy)
	case errors.Is(err, entity.ErrUndecodableImage):
		b.sendMessage(chatID, msgBadImage)
	case err != nil:
		b.log.Errorw("process photo", "user", msg.From.ID, "error", err)
		b.sendMessage(chatID, msgProcessingError)
	default:
		b.sendOutput(chatID, out)
	}
}

func (b *Bot) sendOutput(chatID int64, out *app.InspectionOutput) {
	if out.Description != nil {
		b.sendMessage(chatID, out.Description.Text)
		return
	}
	r := out.Report
	b.sendMessage(chatID, fmt.Sprintf("Отчёт %s: повреждённость %d%%, чистота %d%%",
		r.ID, int(r.Result.DamageScore*100), int(r.Cleanliness.PClean*100)))
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxPhoto+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > b.maxPhoto {
		return nil, fmt.Errorf("file exceeds %d bytes", b.maxPhoto)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnw("send message", "chat", chatID, "error", err)
	}
}
