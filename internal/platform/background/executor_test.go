package background_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"stray-match/internal/platform/background"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPool(t *testing.T) {
	Convey("Given a started pool", t, func() {
		p := background.NewPool(nil, background.WithWorkers(2), background.WithQueueSize(8))
		p.Start()

		Convey("When tasks are submitted, including failing and panicking ones", func() {
			var ran atomic.Int32
			ok1 := p.Submit("ok", func(context.Context) error { ran.Add(1); return nil })
			ok2 := p.Submit("fails", func(context.Context) error { ran.Add(1); return errors.New("boom") })
			ok3 := p.Submit("panics", func(context.Context) error { ran.Add(1); panic("bad") })

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := p.Shutdown(ctx)

			Convey("Then every task runs and shutdown drains the queue", func() {
				So(ok1 && ok2 && ok3, ShouldBeTrue)
				So(err, ShouldBeNil)
				So(ran.Load(), ShouldEqual, 3)
			})

			Convey("And submissions after shutdown are dropped", func() {
				So(p.Submit("late", func(context.Context) error { return nil }), ShouldBeFalse)
			})
		})
	})

	Convey("Given a pool whose queue is full", t, func() {
		p := background.NewPool(nil, background.WithQueueSize(1))
		// sin Start: la cola no se consume

		first := p.Submit("a", func(context.Context) error { return nil })
		second := p.Submit("b", func(context.Context) error { return nil })

		Convey("Then Submit does not block and drops the overflow", func() {
			So(first, ShouldBeTrue)
			So(second, ShouldBeFalse)
		})
	})

	Convey("Given an inline executor", t, func() {
		var called bool
		ok := background.Inline{}.Submit("inline", func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			called = hasDeadline
			return nil
		})

		Convey("Then the task runs synchronously with a deadline", func() {
			So(ok, ShouldBeTrue)
			So(called, ShouldBeTrue)
		})
	})
}
