// Package videos — загрузка, получение и удаление видео.
// models.go описывает документ видео.
package videos

import "time"

// Video — документ видео. Счётчики реакций НЕ хранятся отдельно:
// их источник правды — множества LikedBy/DislikedBy.
// Поля Likes/Dislikes — исторические счётчики, меняются только через IncrementLikes.
type Video struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Likes       int       `json:"likes"`
	Dislikes    int       `json:"dislikes"`
	Awards      int       `json:"awards"`
	UploaderUID string    `json:"uploaderUid"`
	Title       string    `json:"title"`
	Date        string    `json:"date"` // "Oct 17, 2026", см. common.VideoDateLayout
	LikedBy     []string  `json:"likedBy"`
	DislikedBy  []string  `json:"dislikedBy"`
	CreatedAt   time.Time `json:"createdAt"`

	// PublicID — идентификатор файла в CDN (может содержать папку: "whistle/abc").
	// ID видео — последний сегмент PublicID, чтобы он помещался в URL.
	PublicID string `json:"-"`
}

// HasLiked — есть ли uid в likedBy.
func (v *Video) HasLiked(uid string) bool {
	return contains(v.LikedBy, uid)
}

// HasDisliked — есть ли uid в dislikedBy.
func (v *Video) HasDisliked(uid string) bool {
	return contains(v.DislikedBy, uid)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
