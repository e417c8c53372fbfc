// Command svmon is a minimal terminal dashboard showing live breaker
// state and protection zone status. It is explicitly out-of-scope
// glue around the core domain types — a thin consumer, not exercised
// by any test.
package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"subsv/breaker"
	"subsv/protection"
)

func main() {
	app := tview.NewApplication()

	m := breaker.New()
	distanceRelay, _ := protection.NewDistanceRelay(protection.DefaultDistanceSettings())

	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBorder(true).SetTitle(" svmon: breaker & protection status ")

	render := func() {
		fmt.Fprintf(status, "[yellow]breaker[white]: %s  current=%.1fA  overloaded=%v\n",
			m.GetState(), m.GetCurrent(), m.IsOverloaded())
		fmt.Fprintf(status, "[yellow]distance relay[white]: enabled=%v zone1 reach=%.1fΩ\n",
			distanceRelay.Enabled(), distanceRelay.Settings().Zone1.ReachOhm)
	}

	m.OnStateChange(func(oldState, newState breaker.State) {
		app.QueueUpdateDraw(func() {
			status.Clear()
			render()
		})
	})

	render()

	status.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	if err := app.SetRoot(status, true).Run(); err != nil {
		fmt.Println(err)
	}
}
