package ws_test

import (
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/infantlab/gazekit/internal/adapters/ws"
	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(h *ws.Hub, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func gaze(ts float64, p model.Point2D) model.GazeSample {
	eye := model.EyeSample{GazePoint: p, PupilDiameter: 3.1, Valid: true, PupilValid: true}
	return model.GazeSample{Timestamp: ts, Left: eye, Right: eye}
}

func TestHub(t *testing.T) {
	Convey("Given a hub serving one client", t, func() {
		hub := ws.NewHub(ws.WithEveryNth(1))
		srv := httptest.NewServer(hub.Handler())
		Reset(func() {
			hub.Close()
			srv.Close()
		})

		conn := dial(t, srv)
		Reset(func() { conn.Close() })
		So(waitForClients(hub, 1), ShouldBeTrue)

		Convey("When a gaze sample is broadcast", func() {
			hub.BroadcastGaze(gaze(0.25, model.Point2D{X: 0.5, Y: 0.5}))

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := conn.ReadMessage()

			Convey("Then the client should receive a gaze message", func() {
				So(err, ShouldBeNil)

				var msg map[string]any
				So(json.Unmarshal(data, &msg), ShouldBeNil)
				So(msg["type"], ShouldEqual, "gaze")
				So(msg["timestamp"], ShouldEqual, 0.25)
				So(msg["left_x"], ShouldEqual, 0.5)
				So(msg["left_valid"], ShouldEqual, true)
			})
		})

		Convey("When an invalid-eye sample is broadcast", func() {
			s := gaze(1.0, model.Point2D{X: 0.5, Y: 0.5})
			s.Left.Valid = false
			s.Left.GazePoint = model.InvalidPoint()
			hub.BroadcastGaze(s)

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := conn.ReadMessage()

			Convey("Then the invalid eye should serialize as zeroed coordinates", func() {
				So(err, ShouldBeNil)

				var msg map[string]any
				So(json.Unmarshal(data, &msg), ShouldBeNil)
				So(msg["left_valid"], ShouldEqual, false)
				So(msg["left_x"], ShouldEqual, 0.0)
				So(msg["right_valid"], ShouldEqual, true)
			})
		})

		Convey("When a status transition is broadcast", func() {
			hub.BroadcastStatus(model.ErrorStatus("tracker unplugged"))

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := conn.ReadMessage()

			Convey("Then the client should receive it with the reason", func() {
				So(err, ShouldBeNil)

				var msg map[string]any
				So(json.Unmarshal(data, &msg), ShouldBeNil)
				So(msg["type"], ShouldEqual, "status")
				So(msg["status"], ShouldEqual, "error")
				So(msg["reason"], ShouldEqual, "tracker unplugged")
			})
		})

		Convey("When the client disconnects", func() {
			conn.Close()

			Convey("Then the hub should unregister it", func() {
				So(waitForClients(hub, 0), ShouldBeTrue)
			})

			Convey("And broadcasting should not panic", func() {
				So(waitForClients(hub, 0), ShouldBeTrue)
				So(func() { hub.BroadcastGaze(gaze(2.0, model.Point2D{X: 0.1, Y: 0.1})) }, ShouldNotPanic)
			})
		})
	})
}

func TestHubDownsampling(t *testing.T) {
	Convey("Given a hub broadcasting every 4th sample", t, func() {
		hub := ws.NewHub(ws.WithEveryNth(4))
		srv := httptest.NewServer(hub.Handler())
		Reset(func() {
			hub.Close()
			srv.Close()
		})

		conn := dial(t, srv)
		Reset(func() { conn.Close() })
		So(waitForClients(hub, 1), ShouldBeTrue)

		Convey("When 8 gaze samples are broadcast", func() {
			for i := 0; i < 8; i++ {
				hub.BroadcastGaze(gaze(float64(i)/120, model.Point2D{X: 0.5, Y: 0.5}))
			}

			Convey("Then only samples 4 and 8 should arrive", func() {
				var got []float64
				for i := 0; i < 2; i++ {
					conn.SetReadDeadline(time.Now().Add(2 * time.Second))
					_, data, err := conn.ReadMessage()
					So(err, ShouldBeNil)

					var msg map[string]any
					So(json.Unmarshal(data, &msg), ShouldBeNil)
					got = append(got, msg["timestamp"].(float64))
				}

				So(got, ShouldHaveLength, 2)
				So(math.Abs(got[0]-3.0/120), ShouldBeLessThan, 1e-12)
				So(math.Abs(got[1]-7.0/120), ShouldBeLessThan, 1e-12)
			})
		})
	})
}
