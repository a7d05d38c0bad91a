// Command observer runs the ANCS Notification Consumer engine: it
// watches BlueZ for paired iOS devices, subscribes to their ANCS
// characteristics, and republishes notifications on the
// ancs4linux.Observer D-Bus service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiwiz/ancs4linux/internal/bluez"
	"github.com/kiwiz/ancs4linux/internal/cliutil"
	"github.com/kiwiz/ancs4linux/internal/control"
	"github.com/kiwiz/ancs4linux/internal/device"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultObserverBusName = "ancs4linux.Observer"

var observerDBusName string

var rootCmd = &cobra.Command{
	Use:   "observer",
	Short: "Run the ANCS notification-consumer engine",
	Long: `observer watches BlueZ for paired iOS devices exposing Apple's
Notification Center Service, subscribes to their notifications, and
republishes them as JSON on the ancs4linux.Observer D-Bus service until
the process is killed.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&observerDBusName, "observer-dbus", defaultObserverBusName, "well-known bus name to publish the Observer service under")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "observer: %s\n", err)
		os.Exit(1)
	}
}

// notificationSinkProxy forwards to an *control.ObserverServer that is
// constructed after the Scanner, resolving the Scanner/ObserverServer
// construction cycle (each needs the other).
type notificationSinkProxy struct {
	target *control.ObserverServer
}

func (p *notificationSinkProxy) ShowNotification(n device.OutboundNotification) {
	if p.target != nil {
		p.target.ShowNotification(n)
	}
}

func (p *notificationSinkProxy) DismissNotification(hostID uint32) {
	if p.target != nil {
		p.target.DismissNotification(hostID)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := cliutil.ConfigureLogger(cmd)
	if err != nil {
		return err
	}
	entry := logrus.NewEntry(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus, err := bluez.Connect(entry)
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}
	defer bus.Close()

	sink := &notificationSinkProxy{}
	scanner := device.NewScanner(ctx, bus, sink, entry)

	observerServer, err := control.NewObserverServer(bus.Conn(), observerDBusName, scanner, entry)
	if err != nil {
		return fmt.Errorf("start observer service: %w", err)
	}
	sink.target = observerServer

	if err := scanner.Start(); err != nil {
		return fmt.Errorf("start scanner: %w", err)
	}

	entry.WithField("bus-name", observerDBusName).Info("observer running")
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond) // let in-flight bus callbacks finish
	return nil
}
