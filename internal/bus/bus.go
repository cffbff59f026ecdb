// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus adapts the mixer core to an MQTT broker: it subscribes to
// raw per-sensor axis-delta topics and feeds them into mixer.Device.HandleEvent
// (§6.1), publishes emitted pointer/wheel events (§6.3), and carries action
// commands inbound (§6.2). Built on the teacher's ticker-driven publish
// loop and subscribe-with-callback pattern from cmd/producer and
// internal/app/console_mqtt.go.
package bus

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/p2sm/internal/mixer"
)

// SensorEvent is the wire shape published on the raw sensor topics.
type SensorEvent struct {
	Axis  string `json:"axis"`
	Value int16  `json:"value"`
}

// CommandEvent is the wire shape for inbound action commands (§6.2).
type CommandEvent struct {
	Command string `json:"command"`
	Behavior string `json:"behavior,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Direction string `json:"direction,omitempty"`
	Steps    int    `json:"steps,omitempty"`
	Action   string `json:"action,omitempty"`
}

// Config is the MQTT wiring needed to construct a Bus.
type Config struct {
	Broker        string
	ClientID      string
	TopicSensor1  string
	TopicSensor2  string
	TopicPointerX string
	TopicPointerY string
	TopicWheel    string
	TopicCommands string
}

// Bus is the MQTT-backed implementation of mixer.EventBus, plus the
// subscriber side that feeds mixer.Device.
type Bus struct {
	cfg    Config
	client mqtt.Client
	device *mixer.Device
}

// New connects to the broker and returns a Bus wired to device. Subscriptions
// are armed before this returns.
func New(cfg Config, device *mixer.Device) (*Bus, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("bus: MQTT connect: %w", token.Error())
	}

	b := &Bus{cfg: cfg, client: client, device: device}

	if err := b.subscribeSensor(cfg.TopicSensor1, mixer.Sensor1); err != nil {
		return nil, err
	}
	if err := b.subscribeSensor(cfg.TopicSensor2, mixer.Sensor2); err != nil {
		return nil, err
	}
	if err := b.subscribeCommands(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Bus) subscribeSensor(topic string, sensor mixer.SensorID) error {
	token := b.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev SensorEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("bus: malformed sensor payload on %s: %v", topic, err)
			return
		}

		var axis mixer.Axis
		switch ev.Axis {
		case "x":
			axis = mixer.AxisX
		case "y":
			axis = mixer.AxisY
		default:
			log.Printf("bus: unknown axis %q on %s", ev.Axis, topic)
			return
		}

		b.device.HandleEvent(axis, sensor, ev.Value)
	})
	token.Wait()
	return token.Error()
}

func (b *Bus) subscribeCommands() error {
	token := b.client.Subscribe(b.cfg.TopicCommands, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd CommandEvent
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Printf("bus: malformed command payload: %v", err)
			return
		}
		if err := b.dispatch(cmd); err != nil {
			log.Printf("bus: command %q failed: %v", cmd.Command, err)
		}
	})
	token.Wait()
	return token.Error()
}

func (b *Bus) dispatch(cmd CommandEvent) error {
	switch cmd.Command {
	case "adjust_sensitivity":
		scope := mixer.ScopePointer
		if cmd.Scope == "scroll" {
			scope = mixer.ScopeScroll
		}
		dir := mixer.DirectionInc
		if cmd.Direction == "dec" {
			dir = mixer.DirectionDec
		}
		steps := cmd.Steps
		if steps < 1 {
			steps = 1
		}
		return b.device.AdjustSensitivity(mixer.BehaviorID(cmd.Behavior), scope, dir, steps)

	case "adjust_accel":
		dir := mixer.DirectionInc
		if cmd.Direction == "dec" {
			dir = mixer.DirectionDec
		}
		steps := cmd.Steps
		if steps < 1 {
			steps = 1
		}
		return b.device.AdjustAccel(mixer.BehaviorID(cmd.Behavior), dir, steps)

	case "toggle_accel":
		action := mixer.AccelToggle
		switch cmd.Action {
		case "enable":
			action = mixer.AccelEnable
		case "disable":
			action = mixer.AccelDisable
		}
		b.device.ToggleAccel(action)
		return nil

	case "toggle_twist":
		b.device.ToggleTwist()
		return nil

	case "toggle_twist_reverse":
		b.device.ToggleTwistReverse()
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}

// EmitRel implements mixer.EventBus, publishing each emitted axis on its
// configured topic.
func (b *Bus) EmitRel(axis mixer.Axis, value int16, sync bool) {
	payload, err := json.Marshal(SensorEvent{Axis: axis.String(), Value: value})
	if err != nil {
		log.Printf("bus: marshal emit: %v", err)
		return
	}

	var topic string
	switch axis {
	case mixer.AxisX:
		topic = b.cfg.TopicPointerX
	case mixer.AxisY:
		topic = b.cfg.TopicPointerY
	case mixer.AxisWheel:
		topic = b.cfg.TopicWheel
	default:
		return
	}

	if token := b.client.Publish(topic, 0, sync, payload); token.Wait() && token.Error() != nil {
		log.Printf("bus: publish %s: %v", topic, token.Error())
	}
}

// Close disconnects from the broker.
func (b *Bus) Close() {
	b.client.Disconnect(250)
}
