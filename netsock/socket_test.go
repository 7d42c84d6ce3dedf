package netsock

import (
	"testing"
	"time"

	. "github.com/glycerine/goconvey/convey"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/simhost/refhost"
)

func TestLoopbackSendReceive(t *testing.T) {
	Convey("a loopback socket bounces bytes through its own cache", t, func() {
		host := refhost.New(time.Unix(0, 0))
		s := New(host, nil, 0)

		sendOp := s.Send([]byte("hello"))
		host.RunAll()
		So(sendOp.Done(), ShouldBeTrue)
		res, fail := sendOp.Result()
		So(fail, ShouldBeNil)
		So(res.N, ShouldEqual, 5)

		recvOp := s.Receive(0)
		host.RunAll()
		So(recvOp.Done(), ShouldBeTrue)
		data, fail2 := recvOp.Result()
		So(fail2, ShouldBeNil)
		So(string(data), ShouldEqual, "hello")
	})

	Convey("a receive for an exact count waits for enough bytes to accumulate", t, func() {
		host := refhost.New(time.Unix(0, 0))
		s := New(host, nil, 0)

		recvOp := s.Receive(10)
		host.RunAll()
		So(recvOp.Done(), ShouldBeFalse)

		s.Send([]byte("abc"))
		host.RunAll()
		So(recvOp.Done(), ShouldBeFalse)

		s.Send([]byte("defghijk"))
		host.RunAll()
		So(recvOp.Done(), ShouldBeTrue)
		data, fail := recvOp.Result()
		So(fail, ShouldBeNil)
		So(string(data), ShouldEqual, "abcdefghij")
	})
}

func TestRawAcceptConnect(t *testing.T) {
	Convey("connect completes only after a matching accept", t, func() {
		host := refhost.New(time.Unix(0, 0))
		reg := refhost.NewRegistry(host)

		serverRaw := reg.NewSocket()
		server := New(host, serverRaw, 0)
		server.Bind("host:1")
		acceptOp := server.Accept()

		clientRaw := reg.NewSocket()
		client := New(host, clientRaw, 1)
		connectOp := client.Connect("host:1")

		host.RunAll()

		So(connectOp.Done(), ShouldBeTrue)
		_, fail := connectOp.Result()
		So(fail, ShouldBeNil)

		So(acceptOp.Done(), ShouldBeTrue)
		accepted, fail2 := acceptOp.Result()
		So(fail2, ShouldBeNil)
		So(accepted.Sock, ShouldNotBeNil)
	})
}

func TestCloseFansOutShutdown(t *testing.T) {
	Convey("closing a socket fails every pending operation", t, func() {
		host := refhost.New(time.Unix(0, 0))
		s := New(host, nil, 0)
		s.SetCacheLimit(0)

		sendOp := s.Send([]byte("x"))
		recvOp := s.Receive(1)
		host.RunAll()
		So(sendOp.Done(), ShouldBeFalse)
		So(recvOp.Done(), ShouldBeFalse)

		s.Close()

		So(sendOp.Done(), ShouldBeTrue)
		_, fail := sendOp.Result()
		So(fail, ShouldNotBeNil)
		So(fail.(*coro.Failure).Code, ShouldEqual, "ERROR_SHUTDOWN")

		So(recvOp.Done(), ShouldBeTrue)
		_, fail2 := recvOp.Result()
		So(fail2, ShouldNotBeNil)
		So(fail2.(*coro.Failure).Code, ShouldEqual, "ERROR_SHUTDOWN")
	})
}
