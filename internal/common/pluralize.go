// Package common — pluralize.go содержит готовые строки для бота.
package common

import "fmt"

// FormatReactions создаёт строку вида "👍 12 лайков · 👎 3 дизлайка".
func FormatReactions(likes, dislikes int) string {
	return fmt.Sprintf("👍 %d %s · 👎 %d %s",
		likes, PluralizeLikes(likes), dislikes, PluralizeDislikes(dislikes))
}
