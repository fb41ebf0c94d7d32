// Package auth реализует вход по email и паролю.
// models.go описывает сессии, попытки входа и события смены состояния.
package auth

import "time"

// Session — сессия пользователя. Её id лежит в jti токена.
type Session struct {
	ID        string
	UID       string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active сообщает, можно ли ещё пользоваться сессией.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// SignInResult — ответ на регистрацию и вход.
type SignInResult struct {
	UID       string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StateChange — пользователь вошёл или вышел.
type StateChange struct {
	UID      string
	SignedIn bool
}
