// Command advertiser owns BlueZ's adapter-facing knobs: it exports the
// ancs4linux.Advertising D-Bus service so a controller process can
// start/stop LE advertising and pairing without touching BlueZ
// directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiwiz/ancs4linux/internal/advertising"
	"github.com/kiwiz/ancs4linux/internal/bluez"
	"github.com/kiwiz/ancs4linux/internal/cliutil"
	"github.com/kiwiz/ancs4linux/internal/control"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultAdvertisingBusName = "ancs4linux.Advertising"

var advertisingDBusName string

var rootCmd = &cobra.Command{
	Use:   "advertiser",
	Short: "Export the ancs4linux.Advertising D-Bus service",
	Long: `advertiser exports the ancs4linux.Advertising service: it lets a
controller enumerate HCI adapters, start/stop LE advertising under a
chosen name, and enable/disable the DisplayYesNo pairing agent, until
the process is killed.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&advertisingDBusName, "advertising-dbus", defaultAdvertisingBusName, "well-known bus name to publish the Advertising service under")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "advertiser: %s\n", err)
		os.Exit(1)
	}
}

// pairingCodeSinkProxy forwards to an *control.AdvertisingServer that
// is constructed after the PairingManager, resolving the
// PairingManager/AdvertisingServer construction cycle.
type pairingCodeSinkProxy struct {
	target *control.AdvertisingServer
}

func (p *pairingCodeSinkProxy) PairingCode(pin string) {
	if p.target != nil {
		p.target.PairingCode(pin)
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

	pairingSink := &pairingCodeSinkProxy{}
	pairingMgr := advertising.NewPairingManager(bus, pairingSink)
	manager := advertising.NewManager(bus, pairingMgr, entry)

	advertisingServer, err := control.NewAdvertisingServer(bus.Conn(), advertisingDBusName, manager, pairingMgr, entry)
	if err != nil {
		return fmt.Errorf("start advertising service: %w", err)
	}
	pairingSink.target = advertisingServer

	entry.WithField("bus-name", advertisingDBusName).Info("advertiser running")
	<-ctx.Done()
	return nil
}
