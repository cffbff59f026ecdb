// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display drives an OLED status panel showing the mixer's live
// sensitivity and twist state, adapted from the teacher's internal/app
// display loop (ticker-driven redraw onto an ssd1306 panel via
// golang.org/x/image's basicfont).
package display

import (
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/p2sm/internal/mixer"
)

// Panel drives a single ssd1306 OLED from a mixer.Device's live state.
type Panel struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

// Open initializes periph, opens the default I2C bus, and attaches an
// ssd1306 panel at addr.
func Open(addr uint16) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("display: open I2C bus: %w", err)
	}

	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2CAddress(bus, addr, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: init ssd1306 at 0x%02X: %w", addr, err)
	}
	log.Printf("display: panel initialized at 0x%02X", addr)

	return &Panel{bus: bus, dev: dev}, nil
}

// Close releases the underlying I2C bus.
func (p *Panel) Close() error {
	return p.bus.Close()
}

// ShowSplash draws the boot splash shown before the mixer reports live
// state.
func (p *Panel) ShowSplash() error {
	img, drawer := blankFrame()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("2-Sensor Mixer"))
	drawer.Dot = fixed.P(10, 43)
	drawer.DrawBytes([]byte("Starting up"))
	return p.dev.Draw(p.dev.Bounds(), img, image.Point{})
}

// RunStatusLoop redraws the panel from device's live state every interval
// until stop is closed.
func (p *Panel) RunStatusLoop(device *mixer.Device, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := p.update(device); err != nil {
				log.Printf("display: update error: %v", err)
			}
		}
	}
}

func (p *Panel) update(device *mixer.Device) error {
	img, drawer := blankFrame()

	twist := "off"
	if device.TwistEnabled() {
		twist = "on"
	}
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("Twist: %s", twist)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("Pointer: %3d%%", int(device.GetMoveCoef()*100))))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("Scroll:  %3d%%", int(device.GetTwistCoef()*100))))

	accel := "off"
	if device.TwistAccelEnabled() {
		accel = fmt.Sprintf("%3d%%", int(device.TwistAccelValue()*100))
	}
	drawer.Dot = fixed.P(0, 52)
	drawer.DrawBytes([]byte(fmt.Sprintf("Accel: %s", accel)))

	return p.dev.Draw(p.dev.Bounds(), img, image.Point{})
}

func blankFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return img, &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}
}
