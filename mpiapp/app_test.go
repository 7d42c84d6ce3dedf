package mpiapp_test

import (
	"testing"
	"time"

	. "github.com/glycerine/goconvey/convey"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/mpi"
	"github.com/glycerine/coronet/mpiapp"
	"github.com/glycerine/coronet/simhost"
	"github.com/glycerine/coronet/simhost/refhost"
)

// registryAdapter narrows *refhost.Registry to the mpiapp.Listener
// surface an Application needs to create raw sockets during bring-up.
type registryAdapter struct{ r *refhost.Registry }

func (a registryAdapter) NewSocket() simhost.RawSocket { return a.r.NewSocket() }

func buildApps(host *refhost.Host, addrs map[uint64]string) (map[uint64]*mpiapp.Application, *mpiapp.AddrTable) {
	table, err := mpiapp.NewAddrTable(addrs)
	if err != nil {
		panic(err)
	}
	r := registryAdapter{refhost.NewRegistry(host)}
	var runSeed [32]byte
	copy(runSeed[:], []byte("coronet-mpiapp-test-seed-0123456"))

	apps := make(map[uint64]*mpiapp.Application, len(addrs))
	for rank := range addrs {
		apps[rank] = mpiapp.New(mpiapp.Config{
			Rank:    rank,
			Addrs:   table,
			Clock:   host,
			Reg:     r,
			RunSeed: runSeed,
		})
	}
	return apps, table
}

func TestBringupFormsWorldAndSelf(t *testing.T) {
	Convey("bringup connects every pair once and forms WORLD/SELF", t, func() {
		host := refhost.New(time.Unix(0, 0))
		addrs := map[uint64]string{
			0: "tcp://host0:9000",
			1: "tcp://host1:9000",
			2: "tcp://host2:9000",
		}
		apps, _ := buildApps(host, addrs)

		ops := map[uint64]coro.Operation[struct{}]{}
		for rank, app := range apps {
			ops[rank] = app.Bringup()
		}
		host.RunAll()

		for rank, op := range ops {
			So(op.Done(), ShouldBeTrue)
			_, err := op.Result()
			So(err, ShouldBeNil)

			world := apps[rank].World()
			So(world, ShouldNotBeNil)
			So(world.Size(), ShouldEqual, 3)
			So(world.Rank(), ShouldEqual, rank)

			self := apps[rank].Self()
			So(self, ShouldNotBeNil)
			So(self.Size(), ShouldEqual, 1)
		}
	})
}

func TestRunLoopSequencesUserFuncs(t *testing.T) {
	Convey("Run executes user functions in order, one at a time", t, func() {
		host := refhost.New(time.Unix(0, 0))
		addrs := map[uint64]string{0: "tcp://host0:9000"}
		apps, _ := buildApps(host, addrs)
		app := apps[0]

		bringup := app.Bringup()
		host.RunAll()
		So(bringup.Done(), ShouldBeTrue)

		var order []int
		fns := []mpiapp.UserFunc{
			func(a *mpiapp.Application) coro.Operation[struct{}] {
				order = append(order, 1)
				return coro.NewValue(struct{}{})
			},
			func(a *mpiapp.Application) coro.Operation[struct{}] {
				order = append(order, 2)
				return coro.NewValue(struct{}{})
			},
		}
		runOp := app.Run(fns)
		host.RunAll()
		So(runOp.Done(), ShouldBeTrue)
		So(order, ShouldResemble, []int{1, 2})
	})
}

func TestComputeSchedulesADelay(t *testing.T) {
	Convey("Compute resolves after the modeled duration elapses", t, func() {
		host := refhost.New(time.Unix(0, 0))
		addrs := map[uint64]string{0: "tcp://host0:9000"}
		apps, _ := buildApps(host, addrs)
		app := apps[0]
		bringup := app.Bringup()
		host.RunAll()
		So(bringup.Done(), ShouldBeTrue)

		before := host.Now()
		computeOp := app.Compute(10 * time.Millisecond)
		host.RunAll()
		So(computeOp.Done(), ShouldBeTrue)
		So(host.Now().Sub(before), ShouldEqual, 10*time.Millisecond)
	})
}

func TestDuplicateAndFree(t *testing.T) {
	Convey("Duplicate creates a fresh id sharing sockets, Free removes it", t, func() {
		host := refhost.New(time.Unix(0, 0))
		addrs := map[uint64]string{0: "tcp://host0:9000"}
		apps, _ := buildApps(host, addrs)
		app := apps[0]
		bringup := app.Bringup()
		host.RunAll()
		So(bringup.Done(), ShouldBeTrue)

		id, err := app.Duplicate(mpi.IDWorld)
		So(err, ShouldBeNil)
		So(id, ShouldBeGreaterThan, uint32(mpi.IDSelf))

		dup, err := app.Communicator(id)
		So(err, ShouldBeNil)
		So(dup.Size(), ShouldEqual, app.World().Size())

		So(app.Free(id), ShouldBeNil)
		_, err = app.Communicator(id)
		So(err, ShouldNotBeNil)

		So(app.Free(mpi.IDWorld), ShouldNotBeNil)
	})
}
