package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/ecu.go/pkg/cli/sh"
	"github.com/robotalks/ecu.go/pkg/env"
	"github.com/robotalks/ecu.go/pkg/ground"

	_ "github.com/robotalks/ecu.go/pkg/cli/cmds/engine"
)

var bind = "127.0.0.1:0"

func init() {
	env.SetupFlags()
	env.SetupGroundFlags()
	flag.StringVar(&bind, "bind", bind, "Local UDP address to send from")
}

func main() {
	flag.Parse()

	conf := env.MustNewConfig()
	station := ground.MustDial(bind, conf.Ground.Remote)
	sh.New(conf, station).Run(flag.Args()...)
}
