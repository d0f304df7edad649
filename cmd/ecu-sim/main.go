package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/comms/canfd"
	"github.com/robotalks/ecu.go/pkg/comms/ethernet"
	"github.com/robotalks/ecu.go/pkg/ecu"
	"github.com/robotalks/ecu.go/pkg/env"
	fx "github.com/robotalks/ecu.go/pkg/framework"
	"github.com/robotalks/ecu.go/pkg/hal"
	"github.com/robotalks/ecu.go/pkg/transceiver"
)

func init() {
	env.SetupFlags()
}

func resolvePeer(addr string) net.Addr {
	if addr == "" {
		return nil
	}
	peer, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		log.Fatalln(err)
	}
	return peer
}

// pulser sends a pulse every interval from the control loop.
type pulser struct {
	comms    *ethernet.Comms
	interval time.Duration
	acc      time.Duration
}

func (p *pulser) Update(elapsed time.Duration) {
	if p.acc += elapsed; p.acc < p.interval {
		return
	}
	p.acc = 0
	if err := p.comms.SendPulse(); err != nil {
		glog.V(2).Infof("pulse: %v", err)
	}
}

func main() {
	flag.Parse()

	conf := env.MustNewConfig()
	conn, err := net.ListenPacket("udp", conf.Listen)
	if err != nil {
		log.Fatalln(err)
	}
	peer := resolvePeer(conf.Peer)
	host := conf.ECU.Address()
	sim := hal.NewSim()
	runner := fx.NewRunner().HandleSignals()
	ticker := fx.NewTicker(conf.ControlPeriod, fx.TickFunc(sim.Step))

	var transport comms.Transport
	switch conf.Transport {
	case env.TransportCANFD:
		bus := canfd.NewVirtualBus()
		c, _ := bus.NewComms(host)
		tr := transceiver.New(conn, peer)
		tr.PulseInterval = conf.PulseInterval
		tr.Attach(bus)
		transport = c
		runner.Go(fx.NamedRun("bus", bus), fx.NamedRun("transceiver", tr))
	default:
		c := ethernet.NewComms(conn, host, peer)
		c.LearnPeer = peer == nil
		transport = c
		if conf.PulseInterval > 0 {
			ticker.Add(&pulser{comms: c, interval: conf.PulseInterval})
		}
		runner.Go(fx.NamedRun("ethernet", c))
	}

	e, err := ecu.New(conf.ECU, sim, transport)
	if err != nil {
		log.Fatalln(err)
	}
	ticker.Add(e)
	glog.Infof("ecu-sim: %s on %s via %s", host, conf.Listen, conf.Transport)
	if err := runner.Go(fx.NamedRun("control", ticker)).Wait(); err != nil {
		log.Fatalln(err)
	}
}
