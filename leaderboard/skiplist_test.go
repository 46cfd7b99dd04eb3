package leaderboard

import (
	"fmt"
	"testing"

	"questboard/core"
)

func TestSkipListOrdering(t *testing.T) {
	s := NewSkipList()
	s.Update("a", 10)
	s.Update("b", 20)
	s.Update("c", 15)
	top := s.TopN(3)
	if len(top) != 3 || top[0].User != "b" || top[1].User != "c" || top[2].User != "a" {
		t.Fatalf("unexpected order: %#v", top)
	}
	s.Update("a", 25)
	if top = s.TopN(1); top[0].User != "a" {
		t.Fatalf("top should be a, got %#v", top)
	}
	if r, ok := s.Rank("c"); !ok || r != 3 {
		t.Fatalf("expected c at rank 3, got %d", r)
	}
}

func TestSkipListTiesAndRemove(t *testing.T) {
	s := NewSkipList()
	s.Update("zed", 50)
	s.Update("amy", 50)
	if top := s.TopN(2); top[0].User != "amy" {
		t.Fatalf("ties should break on user id, got %#v", top)
	}
	s.Remove("amy")
	if _, ok := s.Get("amy"); ok {
		t.Fatal("amy should be gone")
	}
	if _, ok := s.Rank("amy"); ok {
		t.Fatal("removed user has a rank")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestSkipListManyUpdates(t *testing.T) {
	s := NewSkipList()
	for i := 0; i < 500; i++ {
		s.Update(core.UserID(fmt.Sprintf("u%03d", i%100)), int64(i))
	}
	if s.Len() != 100 {
		t.Fatalf("expected 100 users, got %d", s.Len())
	}
	top := s.TopN(100)
	for i := 1; i < len(top); i++ {
		if top[i-1].Score < top[i].Score {
			t.Fatalf("not sorted at %d: %#v", i, top[i-1:i+1])
		}
	}
	if top[0].User != "u099" || top[0].Score != 499 {
		t.Fatalf("unexpected leader %#v", top[0])
	}
}
