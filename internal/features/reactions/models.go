// Package reactions реализует лайки и дизлайки видео.
// models.go описывает тип реакции, счётчики и мутацию множеств likedBy/dislikedBy.
package reactions

import (
	"strings"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/features/videos"
)

// Kind — тип реакции.
type Kind string

const (
	Like    Kind = "like"
	Dislike Kind = "dislike"
)

// ParseKind разбирает строку "like"/"dislike" (регистр не важен).
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	}
	return "", common.ErrInvalidReaction
}

// Opposite возвращает противоположную реакцию.
func (k Kind) Opposite() Kind {
	if k == Like {
		return Dislike
	}
	return Like
}

// column — колонка множества в таблице videos. Только из белого списка.
func (k Kind) column() string {
	if k == Like {
		return "liked_by"
	}
	return "disliked_by"
}

// Counts — производные счётчики: размеры множеств.
type Counts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Of возвращает счётчик нужного типа.
func (c Counts) Of(kind Kind) int {
	if kind == Like {
		return c.Likes
	}
	return c.Dislikes
}

// Mutation — одно изменение множеств реакций.
//
// Add=false: убрать uid из множества Kind (снять реакцию).
// Add=true: добавить uid в множество Kind и убрать из противоположного.
// Оба изменения применяются одной операцией.
type Mutation struct {
	Kind Kind
	Add  bool
}

// Plan решает, что сделать по снимку видео, который видит клиент:
// повторное нажатие снимает реакцию, иначе реакция ставится (и заменяет противоположную).
func Plan(kind Kind, video *videos.Video, uid string) Mutation {
	already := video.HasLiked(uid)
	if kind == Dislike {
		already = video.HasDisliked(uid)
	}
	return Mutation{Kind: kind, Add: !already}
}

// Apply применяет мутацию к множествам в памяти и возвращает новые множества.
// Семантика совпадает с SQL в Repository.Apply.
func (m Mutation) Apply(likedBy, dislikedBy []string, uid string) ([]string, []string) {
	target, opposite := likedBy, dislikedBy
	if m.Kind == Dislike {
		target, opposite = dislikedBy, likedBy
	}

	if m.Add {
		target = union(target, uid)
		opposite = remove(opposite, uid)
	} else {
		target = remove(target, uid)
	}

	if m.Kind == Dislike {
		return opposite, target
	}
	return target, opposite
}

func union(set []string, uid string) []string {
	for _, s := range set {
		if s == uid {
			return set
		}
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set...)
	return append(out, uid)
}

// remove убирает ВСЕ вхождения uid, как array_remove.
func remove(set []string, uid string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != uid {
			out = append(out, s)
		}
	}
	return out
}
