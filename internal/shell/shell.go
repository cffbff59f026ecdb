// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package shell implements the §6.5 `p2sm` command surface over both a
// stdin REPL and a UART transport, mirroring the original firmware's
// p2sm_shell.c subcommand tree (status, twist, sens, behavior). The
// original exposes this over the keyboard MCU's serial console; the UART
// adapter here opens a serial port the same way the teacher's GPS producer
// does (internal/app/gps_producer.go), instead of only offering the REPL.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/p2sm/internal/mixer"
)

// Dispatcher parses and executes `p2sm ...` command lines against a
// mixer.Device, writing formatted responses to an io.Writer.
type Dispatcher struct {
	device *mixer.Device
}

// New returns a Dispatcher bound to device.
func New(device *mixer.Device) *Dispatcher {
	return &Dispatcher{device: device}
}

// ftoi reproduces p2sm_shell.c's percentage formatter: a truncated integer
// percent, with a "~" prefix and two fractional digits when the value
// isn't an exact percentage point.
func ftoi(v float64) string {
	intPart := int(v * 100)
	fracPart := int(v*100*100) % 100
	if fracPart < 0 {
		fracPart = -fracPart
	}
	if fracPart != 0 {
		return fmt.Sprintf("~%d.%02d%%", intPart, fracPart)
	}
	return fmt.Sprintf("%d%%", intPart)
}

// Handle dispatches a single command line (without the leading "p2sm",
// e.g. "status" or "sens pointer get") and writes its response to w.
func (d *Dispatcher) Handle(w io.Writer, line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	var err error
	switch args[0] {
	case "status":
		d.cmdStatus(w)
	case "twist":
		err = d.cmdTwist(w, args)
	case "sens":
		err = d.cmdSens(w, args)
	case "behavior":
		err = d.cmdBehavior(w, args)
	default:
		fmt.Fprintf(w, "Usage: p2sm <status|twist|sens|behavior>\n")
		return
	}
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func (d *Dispatcher) cmdStatus(w io.Writer) {
	fmt.Fprintln(w, "----- General -----")
	twistState := "disabled"
	if d.device.TwistEnabled() {
		twistState = "enabled"
	}
	fmt.Fprintf(w, "Twist scroll: %s\n", twistState)
	reversed := "no"
	if d.device.TwistReversed() {
		reversed = "yes"
	}
	fmt.Fprintf(w, "Twist reversed: %s\n", reversed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "----- Sensitivity -----")
	fmt.Fprintf(w, "Pointer: %s\n", ftoi(d.device.GetMoveCoef()))
	fmt.Fprintf(w, "Twist scroll: %s\n", ftoi(d.device.GetTwistCoef()))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "----- Behaviors -----")
	behaviors := d.device.Behaviors()
	sort.Slice(behaviors, func(i, j int) bool { return behaviors[i].ID < behaviors[j].ID })
	fmt.Fprintf(w, "Number of behaviors: %d\n", len(behaviors))

	for _, b := range behaviors {
		fmt.Fprintln(w)
		scrollTag := ""
		if b.Scroll {
			scrollTag = " [scroll]"
		}
		fmt.Fprintf(w, "[ID %s] %s%s\n", b.ID, b.DisplayName, scrollTag)
		fmt.Fprintf(w, "  step: %d\n", b.Step)
		fmt.Fprintf(w, "  min_step: %d, max_step: %d\n", b.MinStep, b.MaxStep)
		fmt.Fprintf(w, "  max_multiplier: %v\n", b.MaxMultiplier)
		fmt.Fprintf(w, "  wrap: %t\n", b.Wrap)
		fmt.Fprintf(w, "  feedback_on_limit: %t\n", b.FeedbackOnLimit)
		fmt.Fprintf(w, "  feedback_duration: %d\n", b.FeedbackDurationMs)
		if len(b.FeedbackWrapPattern) > 0 && (b.Wrap || b.FeedbackOnLimit) {
			parts := make([]string, len(b.FeedbackWrapPattern))
			for i, v := range b.FeedbackWrapPattern {
				parts[i] = strconv.FormatInt(v, 10)
			}
			fmt.Fprintf(w, "  feedback_wrap_pattern: [%s]\n", strings.Join(parts, ", "))
		}
	}
}

func (d *Dispatcher) cmdTwist(w io.Writer, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(w, "Usage: p2sm twist <on|off|toggle|reverse>")
		return nil
	}

	switch args[1] {
	case "on":
		if !d.device.TwistEnabled() {
			d.device.ToggleTwist()
		}
	case "off":
		if d.device.TwistEnabled() {
			d.device.ToggleTwist()
		}
	case "toggle":
		d.device.ToggleTwist()
	case "reverse":
		d.device.ToggleTwistReverse()
	default:
		fmt.Fprintln(w, "Usage: p2sm twist <on|off|toggle|reverse>")
	}
	return nil
}

func (d *Dispatcher) cmdSens(w io.Writer, args []string) error {
	if len(args) < 3 {
		fmt.Fprintln(w, "Usage: p2sm sens <pointer|twist> <get|set> [value]")
		return nil
	}

	var isPointer bool
	switch args[1] {
	case "pointer":
		isPointer = true
	case "twist":
		isPointer = false
	default:
		fmt.Fprintln(w, "Usage: p2sm sens <pointer|twist> <get|set> [value]")
		return nil
	}

	get := func() float64 {
		if isPointer {
			return d.device.GetMoveCoef()
		}
		return d.device.GetTwistCoef()
	}
	set := func(v float64) {
		if isPointer {
			d.device.SetMoveCoef(v)
		} else {
			d.device.SetTwistCoef(v)
		}
	}

	switch args[2] {
	case "get":
		v := get()
		fmt.Fprintf(w, "%d (%s)\n", int(v*1000), ftoi(v))
	case "set":
		if len(args) < 4 {
			fmt.Fprintln(w, "Usage: p2sm sens <pointer|twist> <get|set> [value]")
			return nil
		}
		parsed, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[3], err)
		}
		set(float64(parsed) / 1000)
		v := get()
		fmt.Fprintf(w, "Set: %d (%s)\n", int(v*1000), ftoi(v))
	default:
		fmt.Fprintln(w, "Usage: p2sm sens <pointer|twist> <get|set> [value]")
	}
	return nil
}

func (d *Dispatcher) cmdBehavior(w io.Writer, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(w, "Usage: p2sm behavior <set|save|load> ...")
		return nil
	}

	switch args[1] {
	case "set":
		return d.cmdBehaviorSet(w, args[2:])
	case "save":
		return d.cmdBehaviorSave(w, args[2:])
	case "load":
		if err := d.device.LoadBehaviors(); err != nil {
			return err
		}
		fmt.Fprintln(w, "Done.")
		return nil
	default:
		fmt.Fprintln(w, "Usage: p2sm behavior <set|save|load> ...")
		return nil
	}
}

// cmdBehaviorSet implements `p2sm behavior set <id> <step> <min_step>
// <max_step> <max_mult> <wrap> <fb_on_limit> <fb_duration> <fb_pattern_len>
// [pattern_values...]`, matching cmd_behavior_set's argument order.
func (d *Dispatcher) cmdBehaviorSet(w io.Writer, args []string) error {
	const usage = "Usage: p2sm behavior set <id> <step> <min_step> <max_step> <max_mult> <wrap> <fb_on_limit> <fb_duration> <fb_pattern_len> [pattern_values...]"
	if len(args) < 9 {
		fmt.Fprintln(w, usage)
		return nil
	}

	id := mixer.BehaviorID(args[0])
	existing, ok := d.device.Behavior(id)
	if !ok {
		return fmt.Errorf("unknown behavior id %q", id)
	}

	step, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid step: %w", err)
	}
	minStep, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid min_step: %w", err)
	}
	maxStep, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid max_step: %w", err)
	}
	maxMult, err := strconv.ParseFloat(args[4], 64)
	if err != nil {
		return fmt.Errorf("invalid max_mult: %w", err)
	}
	wrap := args[5] == "1"
	fbOnLimit := args[6] == "1"
	fbDuration, err := strconv.ParseInt(args[7], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid fb_duration: %w", err)
	}
	patternLen, err := strconv.Atoi(args[8])
	if err != nil {
		return fmt.Errorf("invalid fb_pattern_len: %w", err)
	}

	var pattern []int64
	if patternLen > 0 {
		if len(args) < 9+patternLen {
			return fmt.Errorf("not enough pattern values: expected %d, got %d", patternLen, len(args)-9)
		}
		pattern = make([]int64, patternLen)
		for i := 0; i < patternLen; i++ {
			v, err := strconv.ParseInt(args[9+i], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pattern value %q: %w", args[9+i], err)
			}
			pattern[i] = v
		}
	}

	cfg := existing
	cfg.Step = step
	cfg.MinStep = minStep
	cfg.MaxStep = maxStep
	cfg.MaxMultiplier = maxMult
	cfg.Wrap = wrap
	cfg.FeedbackOnLimit = fbOnLimit
	cfg.FeedbackDurationMs = fbDuration
	cfg.FeedbackWrapPattern = pattern

	if err := d.device.SetBehaviorConfig(id, cfg); err != nil {
		fmt.Fprintf(w, "Failed to update behavior %s configuration (error: %v)\n", id, err)
		return nil
	}
	fmt.Fprintf(w, "Behavior %s configuration updated successfully\n", id)
	return nil
}

func (d *Dispatcher) cmdBehaviorSave(w io.Writer, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(w, "Usage: p2sm behavior save <all|id>")
		return nil
	}
	if args[0] == "all" {
		if err := d.device.SaveBehaviors(); err != nil {
			return err
		}
		fmt.Fprintln(w, "Done.")
		return nil
	}
	if err := d.device.SaveBehavior(mixer.BehaviorID(args[0])); err != nil {
		return err
	}
	fmt.Fprintln(w, "Done.")
	return nil
}

// RunREPL reads newline-terminated `p2sm ...` commands from r and writes
// responses to w until r is exhausted.
func RunREPL(d *Dispatcher, r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "p2sm ")
		line = strings.TrimPrefix(line, "p2sm")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d.Handle(w, line)
	}
}

// RunSerial opens a UART at portName/baud and runs the REPL over it,
// the same serial.OpenOptions shape the GPS producer uses for its port.
func RunSerial(d *Dispatcher, portName string, baud uint) error {
	port, err := serial.Open(serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("shell: open serial port %s: %w", portName, err)
	}
	defer port.Close()

	log.Printf("shell: serial console opened on %s at %d baud", portName, baud)
	RunREPL(d, port, port)
	return nil
}
