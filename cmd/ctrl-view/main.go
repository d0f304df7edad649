package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/env"
	fx "github.com/robotalks/ecu.go/pkg/framework"
	"github.com/robotalks/ecu.go/pkg/ground"
	"github.com/robotalks/ecu.go/pkg/ground/feed"
	"github.com/robotalks/ecu.go/pkg/ground/mqtt"
)

func init() {
	env.SetupFlags()
	env.SetupGroundFlags()
}

// liveness warns when a watched node goes silent or comes back.
type liveness struct {
	watchdog *ground.Watchdog
	nodes    []string
	alive    map[string]bool
}

func (l *liveness) Update(time.Duration) {
	for _, name := range l.nodes {
		alive := l.watchdog.Alive(name)
		if was, ok := l.alive[name]; ok && was == alive {
			continue
		}
		l.alive[name] = alive
		if alive {
			glog.Infof("%s alive", name)
		} else {
			glog.Warningf("%s silent for %s", name, l.watchdog.Timeout)
		}
	}
}

func main() {
	flag.Parse()

	conf := env.MustNewConfig()
	g := conf.Ground
	station := ground.MustDial(g.Listen, g.Remote)
	view := ground.NewView(conf.ECU.Sensors)
	watchdog := ground.NewWatchdog(g.WatchdogTimeout)
	monitor := ground.NewMonitor(station.Events(), view, watchdog)

	runner := fx.NewRunner().HandleSignals()
	if g.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(g.MQTTBrokerURL, g.ClientID)
		if err != nil {
			log.Fatalln(err)
		}
		q.Connect()
		defer q.Close()
		monitor.Add(mqtt.NewBridge(q, conf.ECU.Sensors))
	}
	if g.FeedAddr != "" {
		server := feed.NewServer(g.FeedAddr, func() interface{} { return monitor.Snapshot() })
		runner.Go(fx.NamedRun("feed", server))
	}

	watch := &liveness{watchdog: watchdog, nodes: []string{ground.TransceiverNode}, alive: make(map[string]bool)}
	for i := 0; i < g.EngineCount; i++ {
		watch.nodes = append(watch.nodes, comms.EngineController(uint8(i)).String())
	}
	err := runner.Go(
		fx.NamedRun("station", station),
		fx.NamedRun("monitor", monitor),
		fx.NamedRun("watchdog", fx.NewTicker(g.WatchdogTimeout/2, watch)),
	).Wait()
	if err != nil {
		log.Fatalln(err)
	}
}
