package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// runStoreTests checks behavior every Store implementation must share.
func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
		link := ShortLink{ShortID: "abc1234", OriginalURL: "https://example.com", CreatedAt: now, UpdatedAt: now}
		if err := s.Create(ctx, link); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, err := s.Get(ctx, "abc1234")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.OriginalURL != link.OriginalURL {
			t.Errorf("OriginalURL = %q, want %q", got.OriginalURL, link.OriginalURL)
		}
		if got.TotalClicks != 0 || got.UniqueClicks != 0 {
			t.Errorf("counters = %d/%d, want 0/0", got.TotalClicks, got.UniqueClicks)
		}
		if got.VisitorDetails == nil || len(got.VisitorDetails) != 0 {
			t.Errorf("VisitorDetails = %#v, want empty non-nil slice", got.VisitorDetails)
		}
		if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
			t.Errorf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, now)
		}
	})

	t.Run("CreateConflict", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		now := time.Now()
		if err := s.Create(ctx, ShortLink{ShortID: "dup1234", OriginalURL: "https://a.example", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		err := s.Create(ctx, ShortLink{ShortID: "dup1234", OriginalURL: "https://b.example", CreatedAt: now, UpdatedAt: now})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("second Create() error = %v, want ErrConflict", err)
		}
		got, err := s.Get(ctx, "dup1234")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.OriginalURL != "https://a.example" {
			t.Errorf("OriginalURL = %q, conflicting create overwrote it", got.OriginalURL)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		if _, err := s.Get(context.Background(), "doesnotexist"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("RecordVisit", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		now := time.Now()
		if err := s.Create(ctx, ShortLink{ShortID: "abc1234", OriginalURL: "https://example.com", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		steps := []struct {
			visitor, city string
			novel         bool
			total, unique int64
		}{
			{"v1", "Berlin", true, 1, 1},
			{"v1", "Berlin", false, 2, 1},
			{"v2", "Paris", true, 3, 2},
			{"v1", "Tokyo", false, 4, 2},
		}
		for i, st := range steps {
			novel, err := s.RecordVisit(ctx, Visit{ShortID: "abc1234", VisitorID: st.visitor, City: st.city, Ts: now.Add(time.Duration(i+1) * time.Second)})
			if err != nil {
				t.Fatalf("step %d: RecordVisit() error = %v", i, err)
			}
			if novel != st.novel {
				t.Errorf("step %d: novel = %v, want %v", i, novel, st.novel)
			}
			got, err := s.Get(ctx, "abc1234")
			if err != nil {
				t.Fatalf("step %d: Get() error = %v", i, err)
			}
			if got.TotalClicks != st.total || got.UniqueClicks != st.unique {
				t.Errorf("step %d: counters = %d/%d, want %d/%d", i, got.TotalClicks, got.UniqueClicks, st.total, st.unique)
			}
		}

		got, _ := s.Get(ctx, "abc1234")
		want := []Visitor{{"v1", "Berlin"}, {"v2", "Paris"}}
		if !reflect.DeepEqual(got.VisitorDetails, want) {
			t.Errorf("VisitorDetails = %v, want %v", got.VisitorDetails, want)
		}
		if !got.UpdatedAt.After(got.CreatedAt) {
			t.Errorf("UpdatedAt %v not after CreatedAt %v", got.UpdatedAt, got.CreatedAt)
		}
	})

	t.Run("RecordVisitMissing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		now := time.Now()
		if err := s.Create(ctx, ShortLink{ShortID: "abc1234", OriginalURL: "https://example.com", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		before, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if _, err := s.RecordVisit(ctx, Visit{ShortID: "nope1234", VisitorID: "v1", City: "Berlin", Ts: now}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("RecordVisit() error = %v, want ErrNotFound", err)
		}
		after, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if !reflect.DeepEqual(before, after) {
			t.Errorf("store changed: before %+v, after %+v", before, after)
		}
	})

	t.Run("ListOrder", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		now := time.Now()
		ids := []string{"zzz1234", "aaa1234", "mmm1234"}
		for i, id := range ids {
			ts := now.Add(time.Duration(i) * time.Millisecond)
			if err := s.Create(ctx, ShortLink{ShortID: id, OriginalURL: "https://example.com/" + id, CreatedAt: ts, UpdatedAt: ts}); err != nil {
				t.Fatalf("Create(%s) error = %v", id, err)
			}
		}
		if _, err := s.RecordVisit(ctx, Visit{ShortID: "aaa1234", VisitorID: "v1", City: "Oslo", Ts: now}); err != nil {
			t.Fatalf("RecordVisit() error = %v", err)
		}
		links, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(links) != len(ids) {
			t.Fatalf("len(List()) = %d, want %d", len(links), len(ids))
		}
		for i, id := range ids {
			if links[i].ShortID != id {
				t.Errorf("links[%d] = %s, want %s", i, links[i].ShortID, id)
			}
		}
		if len(links[1].VisitorDetails) != 1 || links[1].VisitorDetails[0].City != "Oslo" {
			t.Errorf("links[1].VisitorDetails = %v", links[1].VisitorDetails)
		}
		if links[0].VisitorDetails == nil {
			t.Error("links[0].VisitorDetails is nil, want empty slice")
		}
	})

	t.Run("ConcurrentVisits", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		now := time.Now()
		if err := s.Create(ctx, ShortLink{ShortID: "hot1234", OriginalURL: "https://example.com", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		const visitors, repeats = 20, 3
		var wg sync.WaitGroup
		errs := make(chan error, visitors*repeats)
		for v := 0; v < visitors; v++ {
			for r := 0; r < repeats; r++ {
				wg.Add(1)
				go func(v int) {
					defer wg.Done()
					_, err := s.RecordVisit(ctx, Visit{ShortID: "hot1234", VisitorID: fmt.Sprintf("v%d", v), City: "X", Ts: time.Now()})
					if err != nil {
						errs <- err
					}
				}(v)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("RecordVisit() error = %v", err)
		}
		got, err := s.Get(ctx, "hot1234")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.TotalClicks != visitors*repeats {
			t.Errorf("TotalClicks = %d, want %d", got.TotalClicks, visitors*repeats)
		}
		if got.UniqueClicks != visitors || len(got.VisitorDetails) != visitors {
			t.Errorf("UniqueClicks = %d, len(VisitorDetails) = %d, want %d", got.UniqueClicks, len(got.VisitorDetails), visitors)
		}
	})
}
