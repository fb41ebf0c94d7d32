// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам (HTTP и бот) различать типы проблем
// и отвечать клиенту понятным сообщением и правильным статусом.
package common

import "errors"

// Ошибки видео и реакций
var (
	// ErrVideoNotFound — видео не найдено (или документ битый)
	ErrVideoNotFound = errors.New("видео не найдено")
	// ErrVideoExists — видео с таким id уже сохранено
	ErrVideoExists = errors.New("видео с таким идентификатором уже существует")
	// ErrNotOwner — удалять видео может только тот, кто его загрузил
	ErrNotOwner = errors.New("удалять видео может только автор")
	// ErrInvalidReaction — неизвестный тип реакции
	ErrInvalidReaction = errors.New("неизвестный тип реакции")
	// ErrEmptyCaption — подпись к видео не задана
	ErrEmptyCaption = errors.New("подпись к видео не может быть пустой")
)

// Ошибки ленты
var (
	// ErrFeedUnavailable — не удалось загрузить коллекцию видео для ленты
	ErrFeedUnavailable = errors.New("лента временно недоступна")
	// ErrInvalidPageKey — ключ страницы не число
	ErrInvalidPageKey = errors.New("ключ страницы должен быть целым числом")
)

// Ошибки профилей и ауры
var (
	// ErrProfileNotFound — профиль не найден
	ErrProfileNotFound = errors.New("профиль не найден")
	// ErrInvalidName — пустое или слишком длинное имя
	ErrInvalidName = errors.New("имя должно быть от 1 до 64 символов")
	// ErrInvalidAmount — нулевое или слишком большое изменение
	ErrInvalidAmount = errors.New("некорректная величина изменения")
	// ErrSelfAura — ауру нельзя менять самому себе
	ErrSelfAura = errors.New("нельзя менять ауру самому себе")
)

// Ошибки загрузки медиа
var (
	// ErrMalformedUpload — ответ CDN не содержит обязательных полей
	ErrMalformedUpload = errors.New("некорректный ответ сервиса загрузки")
	// ErrEmptyUpload — пустой файл
	ErrEmptyUpload = errors.New("файл для загрузки пустой")
)

// Ошибки аутентификации
var (
	// ErrInvalidCredentials — неверный email или пароль
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, попробуйте позже")
	// ErrSessionExpired — сессия истекла или была закрыта
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
	// ErrEmailTaken — email уже зарегистрирован
	ErrEmailTaken = errors.New("этот email уже зарегистрирован")
	// ErrWeakPassword — пароль короче 8 символов
	ErrWeakPassword = errors.New("пароль должен быть не короче 8 символов")
	// ErrInvalidEmail — email без @
	ErrInvalidEmail = errors.New("некорректный email")
)

// Ошибки воспроизведения
var (
	// ErrPresentationNotFound — показ не найден или уже истёк
	ErrPresentationNotFound = errors.New("показ видео не найден")
	// ErrUnknownPlaybackEvent — неизвестное событие плеера
	ErrUnknownPlaybackEvent = errors.New("неизвестное событие плеера")
)

// Ошибки бота
var (
	// ErrNotLinked — Telegram-аккаунт не привязан к профилю
	ErrNotLinked = errors.New("аккаунт не привязан, используйте /link")
)
