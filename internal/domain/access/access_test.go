package access_test

import (
	"errors"
	"testing"

	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAuthorize(t *testing.T) {
	user := &model.User{ID: "u1", Username: "ada"}
	member := &model.Member{TournamentID: "t1", UserID: "u1"}
	super := &model.Member{TournamentID: "t1", UserID: "u1", IsSuperuser: true}

	Convey("Given an anonymous caller", t, func() {
		_, err := access.Authorize(nil, nil, access.Read)
		So(err, ShouldBeNil)
		for _, a := range []access.Action{access.Authenticated, access.Member, access.Admin} {
			_, err = access.Authorize(nil, nil, a)
			So(errors.Is(err, access.ErrUnauthenticated), ShouldBeTrue)
		}
	})

	Convey("Given a user outside the tournament", t, func() {
		g, err := access.Authorize(user, nil, access.Authenticated)
		So(err, ShouldBeNil)
		So(g.UserID, ShouldEqual, "u1")
		_, err = access.Authorize(user, nil, access.Member)
		So(errors.Is(err, access.ErrForbidden), ShouldBeTrue)
	})

	Convey("Given a plain member", t, func() {
		g, err := access.Authorize(user, member, access.Member)
		So(err, ShouldBeNil)
		So(g.Member, ShouldBeTrue)
		_, err = access.Authorize(user, member, access.Admin)
		So(errors.Is(err, access.ErrForbidden), ShouldBeTrue)
	})

	Convey("Given a superuser", t, func() {
		g, err := access.Authorize(user, super, access.Admin)
		So(err, ShouldBeNil)
		So(g.Superuser, ShouldBeTrue)
	})

	Convey("Given a membership row of someone else", t, func() {
		other := &model.Member{TournamentID: "t1", UserID: "u2", IsSuperuser: true}
		_, err := access.Authorize(user, other, access.Admin)
		So(errors.Is(err, access.ErrForbidden), ShouldBeTrue)
	})
}
