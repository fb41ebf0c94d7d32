// Package aura реализует ауру профиля и награды.
// Когда аура достигает порога (AURA_AWARD_THRESHOLD, 333), порог
// списывается, а пользователь получает одну доступную награду.
package aura

import "time"

// Причины движения ауры в журнале.
const (
	ReasonGift  = "gift"  // выдал другой пользователь
	ReasonAward = "award" // списание порога за награду
)

// LogEntry — запись журнала aura_log.
type LogEntry struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	FromUID   *string   `json:"fromUid,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result — состояние профиля после изменения ауры.
type Result struct {
	UID             string `json:"uid"`
	TotalAura       int    `json:"totalAura"`
	AwardsAvailable int    `json:"awardsAvailable"`
	Awarded         bool   `json:"awarded"`
}

// applyDelta считает новое состояние: одно изменение даёт не больше одной награды.
func applyDelta(total, awards, delta, threshold int) (newTotal, newAwards int, awarded bool) {
	newTotal = total + delta
	newAwards = awards
	if threshold > 0 && newTotal >= threshold {
		newTotal -= threshold
		newAwards++
		awarded = true
	}
	return newTotal, newAwards, awarded
}
