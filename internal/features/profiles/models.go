// Package profiles управляет профилями пользователей и их кешем в памяти.
// models.go описывает документ профиля.
package profiles

import (
	"strings"
	"time"
	"unicode/utf8"

	"serotonyl.ru/whistle/internal/common"
)

// maxNameLength — максимальная длина имени в символах.
const maxNameLength = 64

// Profile — профиль пользователя. Принадлежит пользователю, которого описывает.
type Profile struct {
	UID               string    `json:"uid"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	ProfilePictureURL *string   `json:"profilePictureUrl"`
	TotalAura         int       `json:"totalAura"`
	LikesReceived     int       `json:"likesReceived"`
	AwardsAvailable   int       `json:"awardsAvailable"`
	AwardsReceived    int       `json:"awardsReceived"`
	Uploads           []string  `json:"uploads"`
	VideosWatched     int       `json:"videosWatched"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Clone возвращает глубокую копию: кеш отдаёт наружу только копии.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.Uploads = append([]string(nil), p.Uploads...)
	if p.ProfilePictureURL != nil {
		url := *p.ProfilePictureURL
		cp.ProfilePictureURL = &url
	}
	return &cp
}

// NewProfile собирает профиль нового пользователя со всеми счётчиками в нуле.
func NewProfile(uid, name, email string) (*Profile, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	return &Profile{
		UID:     uid,
		Name:    name,
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Uploads: []string{},
	}, nil
}

// NormalizeName обрезает пробелы и проверяет длину имени.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", common.ErrInvalidName
	}
	return name, nil
}
