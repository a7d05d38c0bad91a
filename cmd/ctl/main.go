// Command ctl is a thin D-Bus client for the ancs4linux.Advertising
// service exported by the advertiser process.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
)

const advertisingPath = dbus.ObjectPath("/")

var advertisingDBusName string

var rootCmd = &cobra.Command{
	Use:           "ctl",
	Short:         "Drive the ancs4linux.Advertising D-Bus service",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&advertisingDBusName, "advertising-dbus", "ancs4linux.Advertising", "Advertising service bus name")

	rootCmd.AddCommand(getAllHciCmd, enableAdvertisingCmd, disableAdvertisingCmd, enablePairingCmd, disablePairingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ctl: %s\n", err)
		os.Exit(1)
	}
}

func advertisingObject() (*dbus.Conn, dbus.BusObject, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return conn, conn.Object(advertisingDBusName, advertisingPath), nil
}

var getAllHciCmd = &cobra.Command{
	Use:   "get-all-hci",
	Short: "List MAC addresses of HCI adapters that support LE advertising",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, obj, err := advertisingObject()
		if err != nil {
			return err
		}
		defer conn.Close()

		var addrs []string
		if err := obj.Call("ancs4linux.Advertising.GetAllHci", 0).Store(&addrs); err != nil {
			return fmt.Errorf("GetAllHci: %w", err)
		}
		payload, err := json.Marshal(addrs)
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	},
}

var enableAdvertisingCmd = &cobra.Command{
	Use:   "enable-advertising <address> <name>",
	Short: "Start LE advertising on the given adapter under the given name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, obj, err := advertisingObject()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := obj.Call("ancs4linux.Advertising.EnableAdvertising", 0, args[0], args[1]).Err; err != nil {
			return fmt.Errorf("EnableAdvertising: %w", err)
		}
		return nil
	},
}

var disableAdvertisingCmd = &cobra.Command{
	Use:   "disable-advertising <address>",
	Short: "Stop LE advertising on the given adapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, obj, err := advertisingObject()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := obj.Call("ancs4linux.Advertising.DisableAdvertising", 0, args[0]).Err; err != nil {
			return fmt.Errorf("DisableAdvertising: %w", err)
		}
		return nil
	},
}

var enablePairingCmd = &cobra.Command{
	Use:   "enable-pairing",
	Short: "Register the DisplayYesNo pairing agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, obj, err := advertisingObject()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := obj.Call("ancs4linux.Advertising.EnablePairing", 0).Err; err != nil {
			return fmt.Errorf("EnablePairing: %w", err)
		}
		return nil
	},
}

var disablePairingCmd = &cobra.Command{
	Use:   "disable-pairing",
	Short: "Unregister the pairing agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, obj, err := advertisingObject()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := obj.Call("ancs4linux.Advertising.DisablePairing", 0).Err; err != nil {
			return fmt.Errorf("DisablePairing: %w", err)
		}
		return nil
	},
}
