// Package watch считает просмотры видео.
//
// Клиентский плеер шлёт события жизненного цикла (ready, buffering, ended,
// playing/paused), а Tracker решает, когда показ закончился: видео доиграло
// до конца или остановилось после того, как было готово к воспроизведению.
// Просмотр засчитывается ровно один раз на показ.
package watch

import (
	"strings"
	"sync"
	"time"

	"serotonyl.ru/whistle/internal/common"
)

// EventKind — тип события плеера.
type EventKind string

const (
	EventReady     EventKind = "ready"
	EventBuffering EventKind = "buffering"
	EventEnded     EventKind = "ended"
	// EventPlaying — смена флага isPlaying, значение в Event.Playing
	EventPlaying EventKind = "playing"
)

// Event — одно событие плеера.
type Event struct {
	Kind    EventKind
	Playing bool
}

// ParseEvent разбирает событие из запроса. "paused" — синоним playing=false.
func ParseEvent(kind string, playing bool) (Event, error) {
	switch EventKind(strings.ToLower(strings.TrimSpace(kind))) {
	case EventReady:
		return Event{Kind: EventReady}, nil
	case EventBuffering:
		return Event{Kind: EventBuffering}, nil
	case EventEnded:
		return Event{Kind: EventEnded}, nil
	case EventPlaying:
		return Event{Kind: EventPlaying, Playing: playing}, nil
	case "paused":
		return Event{Kind: EventPlaying, Playing: false}, nil
	default:
		return Event{}, common.ErrUnknownPlaybackEvent
	}
}

// Tracker следит за одним показом видео.
type Tracker struct {
	mu       sync.Mutex
	ready    bool
	finished bool
}

// Handle применяет событие. Возвращает true, если именно это событие
// завершило показ (такое бывает один раз за жизнь трекера).
func (t *Tracker) Handle(ev Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return false
	}

	switch ev.Kind {
	case EventReady:
		t.ready = true
	case EventEnded:
		t.finished = true
	case EventPlaying:
		// Остановка до READY (например, первичная буферизация) — не просмотр
		if !ev.Playing && t.ready {
			t.finished = true
		}
	}
	return t.finished
}

// Finished сообщает, засчитан ли уже показ.
func (t *Tracker) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Presentation — показ одного видео одному пользователю.
type Presentation struct {
	ID        string    `json:"presentationId"`
	UID       string    `json:"uid"`
	VideoID   string    `json:"videoId"`
	StartedAt time.Time `json:"startedAt"`

	tracker  Tracker
	lastSeen time.Time
}

// EventResult — ответ на событие плеера.
type EventResult struct {
	PresentationID string `json:"presentationId"`
	// Finished — показ уже засчитан (этим или одним из прошлых событий)
	Finished bool `json:"finished"`
	// Counted — просмотр засчитан именно этим событием
	Counted bool `json:"counted"`
}
