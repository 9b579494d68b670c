package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stray-match/internal/platform/retry"

	. "github.com/smartystreets/goconvey/convey"
)

func fastPolicy(attempts int, mode retry.FailureMode) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		Backoff:     []time.Duration{0, time.Millisecond, 2 * time.Millisecond},
		FailureMode: mode,
	}
}

func TestPolicy(t *testing.T) {
	Convey("Given a retry policy with 3 attempts", t, func() {
		ctx := context.Background()
		boom := errors.New("boom")

		Convey("When the first attempt succeeds", func() {
			calls := 0
			err := fastPolicy(3, retry.FailClosed).Do(ctx, func(context.Context) error {
				calls++
				return nil
			})

			Convey("Then it runs once and returns nil", func() {
				So(err, ShouldBeNil)
				So(calls, ShouldEqual, 1)
			})
		})

		Convey("When every attempt fails", func() {
			calls := 0
			p := fastPolicy(3, retry.FailClosed)
			err := p.Do(ctx, func(context.Context) error {
				calls++
				return boom
			})

			Convey("Then it stops after MaxAttempts and returns the last error", func() {
				So(calls, ShouldEqual, 3)
				So(errors.Is(err, boom), ShouldBeTrue)
			})

			Convey("And a fail-closed policy denies", func() {
				So(p.Allows(err), ShouldBeFalse)
			})

			Convey("And a fail-open policy allows", func() {
				So(fastPolicy(3, retry.FailOpen).Allows(err), ShouldBeTrue)
			})
		})

		Convey("When the second attempt succeeds", func() {
			calls := 0
			err := fastPolicy(3, retry.FailClosed).Do(ctx, func(context.Context) error {
				calls++
				if calls < 2 {
					return boom
				}
				return nil
			})

			Convey("Then it returns nil after two calls", func() {
				So(err, ShouldBeNil)
				So(calls, ShouldEqual, 2)
			})
		})

		Convey("When the error is permanent", func() {
			calls := 0
			err := fastPolicy(3, retry.FailClosed).Do(ctx, func(context.Context) error {
				calls++
				return retry.Permanent(boom)
			})

			Convey("Then it does not retry", func() {
				So(calls, ShouldEqual, 1)
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			calls := 0
			err := fastPolicy(3, retry.FailClosed).Do(cctx, func(context.Context) error {
				calls++
				return boom
			})

			Convey("Then it returns the context error without calling fn", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(calls, ShouldEqual, 0)
			})
		})
	})

	Convey("The usage count policy matches the documented schedule", t, func() {
		p := retry.UsageCountPolicy()
		So(p.MaxAttempts, ShouldEqual, 3)
		So(p.Backoff, ShouldResemble, []time.Duration{0, 200 * time.Millisecond, 500 * time.Millisecond})
		So(p.FailureMode, ShouldEqual, retry.FailClosed)
	})
}
