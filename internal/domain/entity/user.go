package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingPhoto UserState = "awaiting_photo" // Ждём фото автомобиля
	StateProcessing    UserState = "processing"     // Идёт инспекция
)

// User представляет пользователя бота
type User struct {
	ID           int64     // Telegram User ID
	ChatID       int64     // Telegram Chat ID
	State        UserState // Текущее состояние пользователя
	LastReportID string    // Последний сохранённый отчёт
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// Busy сообщает, что для пользователя уже идёт обработка фото.
func (u *User) Busy() bool {
	return u.State == StateProcessing
}

// FinishInspection запоминает отчёт и возвращает пользователя в меню.
func (u *User) FinishInspection(reportID string) {
	u.LastReportID = reportID
	u.State = StateMainMenu
}
