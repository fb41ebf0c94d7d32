// Package auth — service.go содержит регистрацию, вход, выход
// и проверку токенов с защитой от перебора паролей.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/features/profiles"
)

// minPasswordLength — минимальная длина пароля в символах.
const minPasswordLength = 8

// Store — хранилище авторизации. Реализуется *Repository.
type Store interface {
	CreateAccount(ctx context.Context, p *profiles.Profile, passwordHash string) error
	GetCredentials(ctx context.Context, email string) (uid, hash string, err error)
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	RevokeSession(ctx context.Context, id string) error
	LogAttempt(ctx context.Context, email string, success bool) error
	RecentFailures(ctx context.Context, email string, since time.Time) (int, error)
}

// Service управляет входом пользователей.
type Service struct {
	store  Store
	tokens *TokenIssuer
	events *Events
	cfg    *config.Config
	now    func() time.Time
}

// NewService создаёт сервис авторизации.
func NewService(store Store, tokens *TokenIssuer, events *Events, cfg *config.Config) *Service {
	return &Service{store: store, tokens: tokens, events: events, cfg: cfg, now: time.Now}
}

// Events возвращает рассыльщик событий входа.
func (s *Service) Events() *Events {
	return s.events
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", common.ErrInvalidEmail
	}
	return email, nil
}

// SignUp регистрирует пользователя и сразу открывает сессию.
// Проверки:
//   - email содержит @
//   - пароль не короче 8 символов
//   - имя от 1 до 64 символов
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*SignInResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, common.ErrWeakPassword
	}

	profile, err := profiles.NewProfile(uuid.NewString(), name, email)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateAccount(ctx, profile, hash); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"uid": profile.UID, "email": email}).Info("Зарегистрирован новый пользователь")
	return s.startSession(ctx, profile.UID)
}

// SignIn проверяет пароль и открывает сессию.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	uid, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, uid)
}

// VerifyCredentials проверяет email и пароль и возвращает uid. После
// AuthMaxFailedAttempts неудач за AuthLockout проверка блокируется до
// истечения окна (common.ErrTooManyAttempts). Сессию не открывает:
// так привязывается Telegram-аккаунт.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", common.ErrInvalidCredentials
	}

	failures, err := s.store.RecentFailures(ctx, email, s.now().Add(-s.cfg.AuthLockout))
	if err != nil {
		return "", err
	}
	if failures >= s.cfg.AuthMaxFailedAttempts {
		log.WithField("email", email).Warn("Вход заблокирован: слишком много неудачных попыток")
		return "", common.ErrTooManyAttempts
	}

	uid, hash, err := s.store.GetCredentials(ctx, email)
	if err != nil && !errors.Is(err, common.ErrInvalidCredentials) {
		return "", err
	}
	match := err == nil && VerifyPassword(password, hash)

	if err := s.store.LogAttempt(ctx, email, match); err != nil {
		log.WithError(err).WithField("email", email).Warn("Не удалось записать попытку входа")
	}
	if !match {
		return "", common.ErrInvalidCredentials
	}
	return uid, nil
}

func (s *Service) startSession(ctx context.Context, uid string) (*SignInResult, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(uid, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateSession(ctx, &Session{ID: sessionID, UID: uid, ExpiresAt: expiresAt}); err != nil {
		return nil, err
	}

	s.events.Publish(StateChange{UID: uid, SignedIn: true})
	log.WithFields(log.Fields{"uid": uid, "session": sessionID}).Debug("Сессия открыта")
	return &SignInResult{UID: uid, Token: token, ExpiresAt: expiresAt}, nil
}

// SignOut закрывает сессию.
func (s *Service) SignOut(ctx context.Context, uid, sessionID string) error {
	if err := s.store.RevokeSession(ctx, sessionID); err != nil {
		return err
	}
	s.events.Publish(StateChange{UID: uid, SignedIn: false})
	log.WithFields(log.Fields{"uid": uid, "session": sessionID}).Debug("Сессия закрыта")
	return nil
}

// Authenticate проверяет токен и сессию за ним.
// Реализует middleware.Authenticator.
func (s *Service) Authenticate(ctx context.Context, token string) (string, string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", "", err
	}

	session, err := s.store.GetSession(ctx, claims.ID)
	if err != nil {
		return "", "", err
	}
	if session.UID != claims.UID || !session.Active(s.now()) {
		return "", "", common.ErrSessionExpired
	}
	return claims.UID, session.ID, nil
}
