// Command zeroconfd is a small example responder: it registers one HTTP
// service, browses for every other instance of its own type, and logs what
// it discovers until interrupted.
package main

import (
	"context"
	"flag"
	// log is used only for this command's own startup/shutdown fatal
	// errors, matching the teacher's own sandbox.go entrypoint; the
	// responder and everything it owns logs exclusively through
	// logging.Logger (see UseLogger below).
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/sync/errgroup"

	"github.com/jmalloc/rendezvous/dnssd"
)

const unregisterTimeout = 3 * time.Second

func main() {
	name := flag.String("name", "zeroconfd", "the service instance name to advertise")
	port := flag.Uint("port", 8080, "the TCP port to advertise")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := dnssd.New(dnssd.UseLogger(logging.DebugLogger))
	if err != nil {
		log.Fatal(err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Run(ctx) })

	reg, err := r.Register(ctx, &dnssd.ServiceInfo{
		Instance: *name,
		Type:     "_http._tcp",
		Port:     uint16(*port),
		Text:     map[string]string{"path": "/"},
	})
	if err != nil {
		log.Fatalf("register: %s", err)
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), unregisterTimeout)
		defer cancel()
		_ = r.Unregister(uctx, reg)
	}()

	r.AddServiceTypeListener(ctx, "", typeListenerFunc(func(serviceType string) {
		logging.Log(logging.DebugLogger, "zeroconfd: discovered service type %s", serviceType)
	}))

	r.AddServiceListener(ctx, "_http._tcp", "", serviceListener{})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}

	_ = r.Close()
}

// typeListenerFunc adapts a func into a dnssd.ServiceTypeListener.
type typeListenerFunc func(serviceType string)

func (f typeListenerFunc) ServiceTypeAdded(serviceType string) { f(serviceType) }

type serviceListener struct{}

func (serviceListener) ServiceAdded(info *dnssd.ServiceInfo) {
	logging.Log(logging.DebugLogger, "zeroconfd: service added: %s", info.InstanceName())
}

func (serviceListener) ServiceRemoved(info *dnssd.ServiceInfo) {
	logging.Log(logging.DebugLogger, "zeroconfd: service removed: %s", info.InstanceName())
}
