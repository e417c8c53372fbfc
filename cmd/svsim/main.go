// Command svsim drives a breaker and its distance/differential
// protection relays against a synthetic current ramp, printing every
// state transition and trip decision. It is a standalone harness for
// demonstrating the domain state machines without a live SV stream;
// it carries no tests of its own.
package main

import (
	"fmt"
	"math/cmplx"
	"os"
	"time"

	"github.com/spf13/cobra"

	"subsv/breaker"
	"subsv/protection"
)

func main() {
	var rampSeconds float64

	root := &cobra.Command{
		Use:   "svsim",
		Short: "Simulate a breaker and its protection relays under a current ramp",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := breaker.New()
			m.OnStateChange(func(oldState, newState breaker.State) {
				fmt.Printf("breaker: %s -> %s\n", oldState, newState)
			})

			distanceRelay, err := protection.NewDistanceRelay(protection.DefaultDistanceSettings())
			if err != nil {
				return err
			}
			distanceRelay.OnTrip(func(r protection.DistanceResult) {
				fmt.Printf("distance trip: zone1=%v zone2=%v zone3=%v impedance=%.2f\n",
					r.Zone1Trip, r.Zone2Trip, r.Zone3Trip, r.MeasuredImpedanceOhm)
			})

			diffRelay, err := protection.NewDifferentialRelay(protection.DefaultDifferentialSettings())
			if err != nil {
				return err
			}
			diffRelay.OnTrip(func(r protection.DifferentialResult) {
				fmt.Printf("differential trip: operating=%.2f restraint=%.2f\n", r.OperatingCurrentA, r.RestraintCurrentA)
			})

			ticks := int(rampSeconds * 10)
			for i := 0; i <= ticks; i++ {
				frac := float64(i) / float64(ticks)
				amps := 50 + frac*200

				m.SetCurrent(amps)

				v := complex(100, 0)
				current := complex(amps/10, 0)
				distanceRelay.Update(v, current)
				diffRelay.Update(current, current*complex(0.98, 0))

				fmt.Printf("t=%.1fs current=%.1fA |Z|=%.2f\n", frac*rampSeconds, amps, cmplx.Abs(v/current))
				time.Sleep(100 * time.Millisecond)
			}
			return nil
		},
	}

	root.Flags().Float64Var(&rampSeconds, "ramp", 5, "seconds to ramp current from 50A to 250A")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
