package aura

import (
	"context"
	"errors"
	"sync"
	"testing"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
)

type memStore struct {
	mu      sync.Mutex
	total   map[string]int
	awards  map[string]int
	entries []*LogEntry
}

func newMemStore(uids ...string) *memStore {
	m := &memStore{total: map[string]int{}, awards: map[string]int{}}
	for _, uid := range uids {
		m.total[uid] = 0
	}
	return m
}

func (m *memStore) Increment(_ context.Context, uid, fromUID string, delta, threshold int) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total, ok := m.total[uid]
	if !ok {
		return nil, common.ErrProfileNotFound
	}
	newTotal, newAwards, awarded := applyDelta(total, m.awards[uid], delta, threshold)
	m.total[uid], m.awards[uid] = newTotal, newAwards

	from := fromUID
	m.entries = append(m.entries, &LogEntry{UID: uid, Delta: delta, Reason: ReasonGift, FromUID: &from})
	if awarded {
		m.entries = append(m.entries, &LogEntry{UID: uid, Delta: -threshold, Reason: ReasonAward})
	}
	return &Result{UID: uid, TotalAura: newTotal, AwardsAvailable: newAwards, Awarded: awarded}, nil
}

func (m *memStore) History(_ context.Context, uid string, limit int) ([]*LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*LogEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UID == uid {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

type refresher struct{ uids []string }

func (r *refresher) Refresh(_ context.Context, uid string) { r.uids = append(r.uids, uid) }

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name                  string
		total, awards, delta  int
		wantTotal, wantAwards int
		wantAwarded           bool
	}{
		{"ниже порога", 100, 0, 100, 200, 0, false},
		{"ровно порог", 233, 0, 100, 0, 1, true},
		{"выше порога", 300, 2, 100, 67, 3, true},
		{"одна награда за раз", 0, 0, 1000, 667, 1, true},
		{"отрицательное", 50, 0, -80, -30, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, awards, awarded := applyDelta(tt.total, tt.awards, tt.delta, 333)
			if total != tt.wantTotal || awards != tt.wantAwards || awarded != tt.wantAwarded {
				t.Errorf("got %d/%d/%v, want %d/%d/%v", total, awards, awarded, tt.wantTotal, tt.wantAwards, tt.wantAwarded)
			}
		})
	}
}

func TestIncrementGrantsAward(t *testing.T) {
	store := newMemStore("bob")
	ref := &refresher{}
	svc := NewService(store, ref, &config.Config{AuraAwardThreshold: 333})
	ctx := context.Background()

	res, err := svc.Increment(ctx, "alice", "bob", 300)
	if err != nil || res.Awarded || res.TotalAura != 300 {
		t.Fatalf("первое изменение: %+v, %v", res, err)
	}

	res, err = svc.Increment(ctx, "alice", "bob", 50)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if !res.Awarded || res.TotalAura != 17 || res.AwardsAvailable != 1 {
		t.Fatalf("после порога: %+v", res)
	}

	if len(ref.uids) != 2 || ref.uids[0] != "bob" {
		t.Errorf("кеш профиля не обновлялся: %v", ref.uids)
	}

	history, _ := svc.History(ctx, "bob", 0)
	if len(history) != 3 || history[0].Reason != ReasonAward || history[0].Delta != -333 {
		t.Fatalf("журнал: %+v", history)
	}
}

func TestIncrementValidation(t *testing.T) {
	svc := NewService(newMemStore("bob"), nil, &config.Config{AuraAwardThreshold: 333})
	ctx := context.Background()

	for _, delta := range []int{0, 1001, -1001} {
		if _, err := svc.Increment(ctx, "alice", "bob", delta); !errors.Is(err, common.ErrInvalidAmount) {
			t.Errorf("delta=%d: err = %v", delta, err)
		}
	}
	if _, err := svc.Increment(ctx, "bob", "bob", 10); !errors.Is(err, common.ErrSelfAura) {
		t.Errorf("самому себе: err = %v", err)
	}
	if _, err := svc.Increment(ctx, "alice", "ghost", 10); !errors.Is(err, common.ErrProfileNotFound) {
		t.Errorf("нет профиля: err = %v", err)
	}
}
