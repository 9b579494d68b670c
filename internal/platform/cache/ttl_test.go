package cache_test

import (
	"testing"
	"time"

	"stray-match/internal/platform/cache"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTL(t *testing.T) {
	Convey("Given a TTL cache with a 1h ttl and an injected clock", t, func() {
		clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		c := cache.NewTTL[string, string](time.Hour,
			cache.WithClock[string, string](clock.Now),
			cache.WithMaxSize[string, string](2),
		)

		Convey("When a value is set", func() {
			c.Set("user-1", "free")

			Convey("Then it is returned before expiry", func() {
				v, ok := c.Get("user-1")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "free")
			})

			Convey("Then it is gone once the ttl elapses", func() {
				clock.Advance(time.Hour)
				_, ok := c.Get("user-1")
				So(ok, ShouldBeFalse)
				So(c.Len(), ShouldEqual, 0)
			})
		})

		Convey("When Prune runs after some entries expire", func() {
			c.Set("a", "1")
			clock.Advance(30 * time.Minute)
			c.Set("b", "2")
			clock.Advance(40 * time.Minute)

			removed := c.Prune()

			Convey("Then only the expired entries are removed", func() {
				So(removed, ShouldEqual, 1)
				_, okA := c.Get("a")
				_, okB := c.Get("b")
				So(okA, ShouldBeFalse)
				So(okB, ShouldBeTrue)
			})
		})

		Convey("When the cache is full of live entries", func() {
			c.Set("a", "1")
			clock.Advance(time.Minute)
			c.Set("b", "2")
			clock.Advance(time.Minute)
			c.Set("c", "3")

			Convey("Then the oldest entry is evicted", func() {
				So(c.Len(), ShouldEqual, 2)
				_, okA := c.Get("a")
				So(okA, ShouldBeFalse)
				_, okC := c.Get("c")
				So(okC, ShouldBeTrue)
			})
		})
	})
}
