package monitor

import (
	"testing"
	"time"

	"github.com/invigilab/go-invigil/pkg/event"
	. "github.com/smartystreets/goconvey/convey"
)

func mustEvent(t event.Type, confidence float64) event.Event {
	e, err := event.New(t, confidence, nil)
	if err != nil {
		panic(err)
	}
	return e
}

func TestDeduper(t *testing.T) {
	Convey("Given a deduper with a 2s window and 0.05 epsilon", t, func() {
		clock := time.Now()
		d := NewDeduper()
		d.now = func() time.Time { return clock }

		Convey("When the first event of a type arrives", func() {
			e := mustEvent(event.TypeAbsence, 0.9)
			dup := d.Check(&e)

			Convey("Then it is not a duplicate", func() {
				So(dup, ShouldBeFalse)
				So(e.Duplicate, ShouldBeFalse)
				So(d.Flagged(), ShouldEqual, 0)
			})
		})

		Convey("When a near-identical event repeats inside the window", func() {
			first := mustEvent(event.TypeAbsence, 0.9)
			d.Check(&first)

			clock = clock.Add(time.Second)
			second := mustEvent(event.TypeAbsence, 0.92)
			dup := d.Check(&second)

			Convey("Then the later event is flagged, not dropped", func() {
				So(dup, ShouldBeTrue)
				So(second.Duplicate, ShouldBeTrue)
				So(d.Flagged(), ShouldEqual, 1)
			})
		})

		Convey("When the repeat falls outside the time window", func() {
			first := mustEvent(event.TypeAbsence, 0.9)
			d.Check(&first)

			clock = clock.Add(3 * time.Second)
			second := mustEvent(event.TypeAbsence, 0.9)
			dup := d.Check(&second)

			Convey("Then it is a fresh event", func() {
				So(dup, ShouldBeFalse)
				So(second.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the confidences differ by more than epsilon", func() {
			first := mustEvent(event.TypeAbsence, 0.9)
			d.Check(&first)

			clock = clock.Add(time.Second)
			second := mustEvent(event.TypeAbsence, 0.7)
			dup := d.Check(&second)

			Convey("Then it is a fresh event", func() {
				So(dup, ShouldBeFalse)
			})
		})

		Convey("When events of different types interleave", func() {
			absence := mustEvent(event.TypeAbsence, 0.9)
			d.Check(&absence)

			clock = clock.Add(500 * time.Millisecond)
			visible := mustEvent(event.TypeFaceVisible, 0.9)
			dup := d.Check(&visible)

			Convey("Then types never dedupe against each other", func() {
				So(dup, ShouldBeFalse)
			})
		})

		Convey("When a chain of repeats arrives", func() {
			first := mustEvent(event.TypeExcessiveNoise, 0.8)
			d.Check(&first)

			for i := 0; i < 3; i++ {
				clock = clock.Add(time.Second)
				next := mustEvent(event.TypeExcessiveNoise, 0.8)
				d.Check(&next)
			}

			Convey("Then each repeat compares against its predecessor", func() {
				So(d.Flagged(), ShouldEqual, 3)
			})
		})

		Convey("When the deduper is reset", func() {
			first := mustEvent(event.TypeAbsence, 0.9)
			d.Check(&first)
			d.Reset()

			clock = clock.Add(time.Second)
			second := mustEvent(event.TypeAbsence, 0.9)
			dup := d.Check(&second)

			Convey("Then the history is gone", func() {
				So(dup, ShouldBeFalse)
				So(d.Flagged(), ShouldEqual, 0)
			})
		})
	})
}
