// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor exposes a websocket live status stream for the mixer,
// adapted from the teacher's register-debug and calibration websocket
// sessions (internal/app/register_debug_handler.go,
// internal/app/calibration_handler.go): the same upgrader + read-JSON
// message loop, pushing a periodic snapshot instead of hardware register
// data.
package monitor

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/p2sm/internal/mixer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Snapshot is the periodic status payload pushed to connected clients.
type Snapshot struct {
	Type          string  `json:"type"`
	TwistEnabled  bool    `json:"twist_enabled"`
	TwistReversed bool    `json:"twist_reversed"`
	MoveCoef      float64 `json:"move_coef"`
	TwistCoef     float64 `json:"twist_coef"`
	AccelEnabled  bool    `json:"accel_enabled"`
	AccelValue    float64 `json:"accel_value"`
	Timestamp     string  `json:"timestamp"`
}

// command is the inbound control-message shape; mirrors internal/bus's
// CommandEvent so the same commands work over either transport.
type command struct {
	Command   string `json:"command"`
	Behavior  string `json:"behavior,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Direction string `json:"direction,omitempty"`
	Steps     int    `json:"steps,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Handler serves the live status websocket, bound to a mixer.Device.
type Handler struct {
	device   *mixer.Device
	interval time.Duration
}

// NewHandler returns a Handler that pushes a snapshot every interval.
func NewHandler(device *mixer.Device, interval time.Duration) *Handler {
	return &Handler{device: device, interval: interval}
}

// ServeHTTP upgrades the connection and runs the push/read loop until the
// client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.pushLoop(conn, done)
}

func (h *Handler) pushLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap := Snapshot{
				Type:          "status",
				TwistEnabled:  h.device.TwistEnabled(),
				TwistReversed: h.device.TwistReversed(),
				MoveCoef:      h.device.GetMoveCoef(),
				TwistCoef:     h.device.GetTwistCoef(),
				AccelEnabled:  h.device.TwistAccelEnabled(),
				AccelValue:    h.device.TwistAccelValue(),
				Timestamp:     time.Now().Format(time.RFC3339),
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("monitor: websocket error: %v", err)
			}
			return
		}
		if err := h.dispatch(cmd); err != nil {
			log.Printf("monitor: command %q failed: %v", cmd.Command, err)
			conn.WriteJSON(map[string]string{"type": "error", "message": err.Error()})
		}
	}
}

func (h *Handler) dispatch(cmd command) error {
	switch cmd.Command {
	case "toggle_twist":
		h.device.ToggleTwist()
		return nil
	case "toggle_twist_reverse":
		h.device.ToggleTwistReverse()
		return nil
	case "toggle_accel":
		action := mixer.AccelToggle
		switch cmd.Action {
		case "enable":
			action = mixer.AccelEnable
		case "disable":
			action = mixer.AccelDisable
		}
		h.device.ToggleAccel(action)
		return nil
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
		return h.device.AdjustSensitivity(mixer.BehaviorID(cmd.Behavior), scope, dir, steps)
	case "adjust_accel":
		dir := mixer.DirectionInc
		if cmd.Direction == "dec" {
			dir = mixer.DirectionDec
		}
		steps := cmd.Steps
		if steps < 1 {
			steps = 1
		}
		return h.device.AdjustAccel(mixer.BehaviorID(cmd.Behavior), dir, steps)
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}
