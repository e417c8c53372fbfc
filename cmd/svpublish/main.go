// Command svpublish is a demo Sampled Values publisher. It builds a
// single-SVCB IED model and republishes a synthetic three-phase
// waveform on the named interface until interrupted. It exists to
// exercise the core publisher loop from the command line; it is not
// part of the protocol core and carries no tests of its own.
package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"subsv/model"
	"subsv/publisher"
	"subsv/sv"
	"subsv/transport"
	"subsv/wire"
)

func main() {
	var (
		iface   string
		svID    string
		mac     string
		appID   uint16
		smpRate uint16
	)

	root := &cobra.Command{
		Use:   "svpublish",
		Short: "Publish a synthetic IEC 61850-9-2 sampled value stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iface == "" {
				found, err := transport.FirstUpEthernetInterface()
				if err != nil {
					return fmt.Errorf("no interface given and autodetect failed: %w", err)
				}
				iface = found
			}

			ied := model.NewIedModel("DEMO_IED")
			ln, err := ied.AddLogicalNode("MU01")
			if err != nil {
				return err
			}
			svcb, err := ln.AddSVCB(svID)
			if err != nil {
				return err
			}
			macAddr, err := wire.ParseMAC(mac)
			if err != nil {
				return err
			}
			svcb.SetMulticastAddress(macAddr)
			svcb.SetAppID(appID)
			svcb.SetSmpRate(smpRate)
			svcb.SetDataSet("Demo_DS")

			server := publisher.NewIedServer(ied, iface)
			if err := server.Start(); err != nil {
				return fmt.Errorf("start publisher: %w", err)
			}
			defer server.Stop()

			fmt.Printf("publishing %s on %s (AppID 0x%04X)\n", svID, iface, appID)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			ticker := time.NewTicker(time.Second / time.Duration(smpRate/80))
			defer ticker.Stop()

			var t float64
			for {
				select {
				case <-stop:
					return nil
				case <-ticker.C:
					t += 1.0 / float64(smpRate)
					values := waveformSample(t)
					if err := server.UpdateSampledValue(svcb, values); err != nil {
						fmt.Fprintf(os.Stderr, "update sample: %v\n", err)
					}
				}
			}
		},
	}

	root.Flags().StringVar(&iface, "iface", "", "network interface (autodetected if empty)")
	root.Flags().StringVar(&svID, "svid", "DemoSV1", "sampled value control block ID")
	root.Flags().StringVar(&mac, "mac", "01:0C:CD:04:00:01", "destination multicast MAC")
	root.Flags().Uint16Var(&appID, "appid", 0x4001, "APPID (16384-32767)")
	root.Flags().Uint16Var(&smpRate, "smprate", 4000, "samples per second")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// waveformSample generates a balanced three-phase 50Hz current/voltage
// set at time t, scaled into the ASDU's eight fixed channels
// (Ia, Ib, Ic, In, Va, Vb, Vc, Vn).
func waveformSample(t float64) [sv.DatasetSize]sv.AnalogValue {
	const (
		currentAmplitude = 1000 // scaled integer units
		voltageAmplitude = 100000
		omega            = 2 * math.Pi * 50
	)
	q := sv.GoodQuality()
	var out [sv.DatasetSize]sv.AnalogValue
	out[0] = sv.NewInt32Value(int32(currentAmplitude*math.Sin(omega*t)), q)
	out[1] = sv.NewInt32Value(int32(currentAmplitude*math.Sin(omega*t-2*math.Pi/3)), q)
	out[2] = sv.NewInt32Value(int32(currentAmplitude*math.Sin(omega*t+2*math.Pi/3)), q)
	out[3] = sv.NewInt32Value(0, q)
	out[4] = sv.NewInt32Value(int32(voltageAmplitude*math.Sin(omega*t)), q)
	out[5] = sv.NewInt32Value(int32(voltageAmplitude*math.Sin(omega*t-2*math.Pi/3)), q)
	out[6] = sv.NewInt32Value(int32(voltageAmplitude*math.Sin(omega*t+2*math.Pi/3)), q)
	out[7] = sv.NewInt32Value(0, q)
	return out
}
