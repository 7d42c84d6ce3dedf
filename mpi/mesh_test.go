package mpi_test

import (
	"fmt"
	"time"

	"github.com/glycerine/coronet/mpi"
	"github.com/glycerine/coronet/netsock"
	"github.com/glycerine/coronet/simhost/refhost"
)

// buildMesh wires a fully-connected mesh of sockets among ranks on a
// shared host/registry: sockets[r][r] is a loopback, sockets[r][r'] is a
// connected pair. Standing in for mpiapp's bring-up (C6), which this
// package's tests don't need to exercise directly.
func buildMesh(host *refhost.Host, reg *refhost.Registry, ranks []uint64) map[uint64]map[uint64]*netsock.Socket {
	result := make(map[uint64]map[uint64]*netsock.Socket, len(ranks))
	for _, r := range ranks {
		result[r] = make(map[uint64]*netsock.Socket, len(ranks))
		result[r][r] = netsock.New(host, nil, r)
	}
	for i, a := range ranks {
		for _, b := range ranks[i+1:] {
			addr := fmt.Sprintf("host-%d-%d", a, b)

			serverRaw := reg.NewSocket()
			server := netsock.New(host, serverRaw, b)
			server.Bind(addr)
			acceptOp := server.Accept()

			clientRaw := reg.NewSocket()
			client := netsock.New(host, clientRaw, a)
			client.Connect(addr)

			host.RunAll()

			accepted, _ := acceptOp.Result()
			result[a][b] = client
			result[b][a] = accepted.Sock
		}
	}
	return result
}

// buildWorld builds a full mesh and a WORLD Communicator per rank,
// seeded deterministically for reproducible leader election in tests.
func buildWorld(host *refhost.Host, ranks []uint64) map[uint64]*mpi.Communicator {
	reg := refhost.NewRegistry(host)
	mesh := buildMesh(host, reg, ranks)
	comms := make(map[uint64]*mpi.Communicator, len(ranks))
	var runSeed [32]byte
	copy(runSeed[:], []byte("coronet-mpi-test-seed-0123456789"))
	for _, r := range ranks {
		rng := mpi.NewRNG(mpi.SeedFor(runSeed, r))
		c, err := mpi.New(mpi.IDWorld, r, mesh[r], rng)
		if err != nil {
			panic(err)
		}
		comms[r] = c
	}
	return comms
}

func newHost() *refhost.Host {
	return refhost.New(time.Unix(0, 0))
}
