// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация для бота, форматирование дат видео
// и чисел.
package common

import (
	"fmt"
	"math"
	"time"
)

// VideoDateLayout — формат поля date у видео ("Oct 17, 2026").
// Клиенты показывают его как есть, поэтому храним строкой.
const VideoDateLayout = "Jan 02, 2006"

// FormatVideoDate форматирует дату загрузки видео в часовом поясе loc.
func FormatVideoDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(VideoDateLayout)
}

// pluralForm выбирает форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralForm(n int64, one, few, many string) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeLikes возвращает правильную форму слова «лайк».
//
// Примеры:
//
//	PluralizeLikes(1)  → "лайк"
//	PluralizeLikes(3)  → "лайка"
//	PluralizeLikes(11) → "лайков"
func PluralizeLikes(n int) string {
	return pluralForm(int64(n), "лайк", "лайка", "лайков")
}

// PluralizeDislikes возвращает правильную форму слова «дизлайк».
func PluralizeDislikes(n int) string {
	return pluralForm(int64(n), "дизлайк", "дизлайка", "дизлайков")
}

// PluralizeVideos возвращает правильную форму слова «видео» с числом.
// Слово не склоняется, но оставляем единый вид вызова для шаблонов бота.
func PluralizeVideos(n int) string {
	return fmt.Sprintf("%d видео", n)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
