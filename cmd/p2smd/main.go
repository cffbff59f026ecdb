// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/p2smd/main.go
//
// p2smd is the two-sensor ball mixer daemon: it loads the ball geometry and
// transport configuration, builds the mixer core, and wires it to whichever
// adapters the configuration enables (MQTT event bus, websocket monitor,
// OLED display, serial/stdin shell). Adapters run concurrently, supervised
// by an errgroup so the first fatal adapter error brings the whole daemon
// down instead of leaving it half-wired.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/p2sm/internal/bus"
	"github.com/relabs-tech/p2sm/internal/config"
	"github.com/relabs-tech/p2sm/internal/display"
	"github.com/relabs-tech/p2sm/internal/feedback"
	"github.com/relabs-tech/p2sm/internal/mixer"
	"github.com/relabs-tech/p2sm/internal/monitor"
	"github.com/relabs-tech/p2sm/internal/persist"
	"github.com/relabs-tech/p2sm/internal/shell"
)

// defaultBehaviors registers the three canonical sensitivity-cycling
// behaviors a keymap action layer (out of scope, §1) drives via
// AdjustSensitivity/AdjustAccel: pointer move, twist scroll, and twist
// acceleration. Static defaults here; `p2sm behavior set`/`save`/`load`
// (§6.5) override and persist them per-device.
func defaultBehaviors() []mixer.BehaviorDescriptor {
	return []mixer.BehaviorDescriptor{
		{
			ID:                 "pointer",
			DisplayName:        "Pointer sensitivity",
			Step:               10,
			MinStep:            1,
			MaxStep:            100,
			MaxMultiplier:      1.0,
			Wrap:               true,
			FeedbackOnLimit:    true,
			FeedbackDurationMs: 40,
			Scroll:             false,
		},
		{
			ID:                  "scroll",
			DisplayName:         "Twist scroll sensitivity",
			Step:                10,
			MinStep:             1,
			MaxStep:             300,
			MaxMultiplier:       3.0,
			Wrap:                true,
			FeedbackOnLimit:     true,
			FeedbackDurationMs:  40,
			FeedbackWrapPattern: []int64{60, 60, 60},
			Scroll:              true,
		},
		{
			ID:                 "accel",
			DisplayName:        "Twist acceleration",
			Step:               50,
			MinStep:            1,
			MaxStep:            40,
			MaxMultiplier:      2.0,
			Wrap:               false,
			FeedbackOnLimit:    false,
			FeedbackDurationMs: 0,
			Scroll:             true,
		},
	}
}

func main() {
	configPath := flag.String("config", "./p2sm_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting p2smd (two-sensor ball mixer)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	store := persist.NewFileStore(cfg.PersistPath)

	var feedbackDriver mixer.FeedbackDriver
	if cfg.FeedbackPrimaryPin != "" {
		drv, err := feedback.New(cfg.FeedbackPrimaryPin, cfg.FeedbackSecondaryPin)
		if err != nil {
			log.Fatalf("failed to open feedback GPIO: %v", err)
		}
		feedbackDriver = drv
	}

	device, err := mixer.Init(mixer.Options{
		Config:    cfg.MixerConfig(),
		Store:     store,
		Feedback:  feedbackDriver,
		Behaviors: defaultBehaviors(),
	})
	if err != nil {
		log.Fatalf("failed to initialize mixer: %v", err)
	}
	device.EnableAcceleration()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MQTTBroker != "" {
		mqttBus, err := bus.New(bus.Config{
			Broker:        cfg.MQTTBroker,
			ClientID:      cfg.MQTTClientID,
			TopicSensor1:  cfg.TopicSensor1,
			TopicSensor2:  cfg.TopicSensor2,
			TopicPointerX: cfg.TopicPointerX,
			TopicPointerY: cfg.TopicPointerY,
			TopicWheel:    cfg.TopicWheel,
			TopicCommands: cfg.TopicCommands,
		}, device)
		if err != nil {
			log.Fatalf("failed to start event bus: %v", err)
		}
		defer mqttBus.Close()
		device.SetBus(mqttBus)
	}

	if cfg.MonitorListenAddr != "" {
		srv := &http.Server{
			Addr:    cfg.MonitorListenAddr,
			Handler: monitor.NewHandler(device, time.Second),
		}
		g.Go(func() error {
			log.Printf("monitor: listening on %s", cfg.MonitorListenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.DisplayEnabled {
		panel, err := display.Open(cfg.DisplayI2CAddr)
		if err != nil {
			log.Fatalf("failed to open display: %v", err)
		}
		defer panel.Close()
		if err := panel.ShowSplash(); err != nil {
			log.Printf("display: splash draw failed: %v", err)
		}
		stopDisplay := make(chan struct{})
		g.Go(func() error {
			panel.RunStatusLoop(device, 500*time.Millisecond, stopDisplay)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			close(stopDisplay)
			return nil
		})
	}

	dispatcher := shell.New(device)
	if cfg.ShellSerialPort != "" {
		g.Go(func() error {
			return shell.RunSerial(dispatcher, cfg.ShellSerialPort, cfg.ShellSerialBaud)
		})
	} else {
		g.Go(func() error {
			shell.RunREPL(dispatcher, os.Stdin, os.Stdout)
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("fatal: %v", err)
	}
}
