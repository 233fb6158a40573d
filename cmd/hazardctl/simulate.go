package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/motion"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/routing"
)

type simulateCommand struct {
	Polyline string  `short:"p" long:"polyline" required:"true" description:"Encoded polyline of the route to drive"`
	Speed    float64 `short:"s" long:"speed" description:"Speed in km/h; the configured default when zero"`
	Every    int     `short:"e" long:"every" default:"20" description:"Print every Nth sample"`
	Realtime bool    `long:"realtime" description:"Tick at the configured interval instead of as fast as possible"`
}

func (c *simulateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	points, err := geo.DecodePolyline(c.Polyline)
	if err != nil {
		return err
	}
	route := geo.Polyline{EncodedPolyline: c.Polyline, Points: points}

	speed := c.Speed
	if speed == 0 {
		speed = cfg.Simulation.DefaultSpeedKmh
	}
	every := c.Every
	if every < 1 {
		every = 1
	}

	monitor := routing.NewMonitor(cfg.Monitor.OffRouteThresholdMeters)
	monitor.SetRoute(route)
	monitor.OnTransition(func(from, to routing.Status, state routing.DeviationState) {
		fmt.Printf("  %s -> %s at %.1f m\n", from, to, state.DistanceMeters)
	})
	tracker := motion.NewTracker(monitor, cfg.Monitor.LiveDebounce, cfg.Simulation.Tick)
	defer tracker.Close()

	sim, err := motion.NewSimulator(route, speed, cfg.Simulation.Tick)
	if err != nil {
		return err
	}
	fmt.Printf("Route %.2f km at %.0f km/h: %d ticks of %.4f km\n",
		sim.LengthKm(), speed, sim.TotalTicks(), sim.StepDistanceKm())

	n := 0
	report := func(sample routing.PositionSample) {
		n++
		state := tracker.Submit(sample)
		if n%every == 0 || sim.Done() {
			fmt.Printf("%6d  %.6f,%.6f  %-9s %6.1f m  %5.1f%%\n",
				n, sample.Point.Latitude, sample.Point.Longitude,
				state.Status, state.DistanceMeters, sim.Progress()*100)
		}
	}

	if !c.Realtime {
		for {
			sample, done := sim.Step()
			report(sample)
			if done {
				return nil
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-sim.Run(ctx, report)
	return nil
}
