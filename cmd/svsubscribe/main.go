// Command svsubscribe is a demo Sampled Values subscriber. It prints
// each received ASDU's sample counter and first current channel to
// stdout. Like svpublish, it is glue around the core subscriber loop,
// not part of the protocol core, and carries no tests.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"subsv/model"
	"subsv/sv"
	"subsv/subscriber"
	"subsv/transport"
)

func main() {
	var (
		iface    string
		svID     string
		dataType string
	)

	root := &cobra.Command{
		Use:   "svsubscribe",
		Short: "Print a live IEC 61850-9-2 sampled value stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iface == "" {
				found, err := transport.FirstUpEthernetInterface()
				if err != nil {
					return fmt.Errorf("no interface given and autodetect failed: %w", err)
				}
				iface = found
			}

			dt := sv.DataTypeInt32
			switch dataType {
			case "int32":
				dt = sv.DataTypeInt32
			case "uint32":
				dt = sv.DataTypeUint32
			case "float32":
				dt = sv.DataTypeFloat32
			default:
				return fmt.Errorf("unknown -datatype %q", dataType)
			}

			ied := model.NewIedModel("DEMO_IED")
			if _, err := ied.AddLogicalNode("MU01"); err != nil {
				return err
			}

			client := subscriber.NewIedClient(ied, iface)
			err := client.Start(dt, func(s subscriber.Sample) {
				fmt.Printf("svID=%s smpCnt=%d Ia=%d\n", svID, s.ASDU.SmpCnt, s.ASDU.DataSet[0].GetScaledInt())
			})
			if err != nil {
				return fmt.Errorf("start subscriber: %w", err)
			}
			defer client.Stop()

			fmt.Printf("listening for %s on %s\n", svID, iface)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			return nil
		},
	}

	root.Flags().StringVar(&iface, "iface", "", "network interface (autodetected if empty)")
	root.Flags().StringVar(&svID, "svid", "DemoSV1", "sampled value control block ID (display only)")
	root.Flags().StringVar(&dataType, "datatype", "int32", "analog value encoding: int32, uint32, or float32")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
