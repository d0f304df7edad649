package main

import (
	"flag"
	"log"
	"os"
	"reflect"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/ecu.go/pkg/env"
	"github.com/robotalks/ecu.go/pkg/ground/mqtt"
)

func init() {
	env.SetupGroundFlags()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := env.MustNewConfig()
	q, err := mqtt.NewQueueFromURL(conf.Ground.MQTTBrokerURL, conf.Ground.ClientID+"-mon")
	if err != nil {
		log.Fatalln(err)
	}
	mqtt.Subscribe(q, func(index uint8, kind string, msg proto.Message) {
		log.Printf("ecu/%d/%s: [%s] %s", index, kind,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), msg.String())
	})
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Println(token.Error())
		os.Exit(1)
	}
	<-(chan struct{})(nil)
}
