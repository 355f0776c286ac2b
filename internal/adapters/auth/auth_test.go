package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/tabroom/internal/adapters/auth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTokens(t *testing.T) {
	Convey("Given a token service with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		tokens, err := auth.New("s3cret", "tabroom", time.Hour, auth.WithClock(clock))
		So(err, ShouldBeNil)

		Convey("When a token is issued and parsed", func() {
			raw, err := tokens.Issue("user-1", "alice")
			So(err, ShouldBeNil)
			claims, err := tokens.Parse(raw)

			Convey("Then the subject survives", func() {
				So(err, ShouldBeNil)
				So(claims.Subject, ShouldEqual, "user-1")
				So(claims.Username, ShouldEqual, "alice")
				So(claims.Issuer, ShouldEqual, "tabroom")
			})
		})

		Convey("When the token outlives its ttl", func() {
			raw, _ := tokens.Issue("user-1", "alice")
			now = now.Add(2 * time.Hour)
			_, err := tokens.Parse(raw)
			So(errors.Is(err, auth.ErrExpiredToken), ShouldBeTrue)
		})

		Convey("When another secret signed the token", func() {
			other, _ := auth.New("other", "tabroom", time.Hour, auth.WithClock(clock))
			raw, _ := other.Issue("user-1", "alice")
			_, err := tokens.Parse(raw)
			So(errors.Is(err, auth.ErrInvalidSignature), ShouldBeTrue)
		})

		Convey("When another issuer signed the token", func() {
			other, _ := auth.New("s3cret", "elsewhere", time.Hour, auth.WithClock(clock))
			raw, _ := other.Issue("user-1", "alice")
			_, err := tokens.Parse(raw)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token is garbage", func() {
			_, err := tokens.Parse("not-a-token")
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})
	})

	Convey("Given an empty secret", t, func() {
		_, err := auth.New("", "tabroom", time.Hour)
		So(errors.Is(err, auth.ErrNoSecret), ShouldBeTrue)
	})
}
