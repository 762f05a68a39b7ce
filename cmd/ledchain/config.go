// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the demo configuration. A YAML file provides the base values and
// flags explicitly set on the command line override them.
type Config struct {
	Units int  `yaml:"units"`
	Sim   bool `yaml:"sim"`
	// SPI is the port name passed to spireg.Open. Empty selects the first one.
	SPI string `yaml:"spi"`
	// CS is the gpioreg name of a software driven chip-select line.
	CS         string        `yaml:"cs"`
	Brightness float64       `yaml:"brightness"`
	Gamma      float64       `yaml:"gamma"`
	Interval   time.Duration `yaml:"interval"`
	Text       string        `yaml:"text"`
	// Font is "basic" or "goregular".
	Font string `yaml:"font"`
	// WS is the listen address of the websocket mirror, only used with Sim.
	WS string `yaml:"ws"`
}

// Default returns the configuration used when neither a file nor flags say
// otherwise.
func Default() Config {
	return Config{
		Units:      4,
		Brightness: 0.1,
		Gamma:      2.2,
		Interval:   time.Second,
		Text:       "Test",
		Font:       "goregular",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// Validate returns an error for values the demo cannot run with.
func (c *Config) Validate() error {
	if c.Units < 1 {
		return fmt.Errorf("units must be at least 1, got %d", c.Units)
	}
	if c.Brightness < 0 || c.Brightness > 1 {
		return fmt.Errorf("brightness must be within [0, 1], got %g", c.Brightness)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("gamma must be positive, got %g", c.Gamma)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	switch c.Font {
	case "basic", "goregular":
	default:
		return fmt.Errorf("unknown font %q", c.Font)
	}
	if c.WS != "" && !c.Sim {
		return errors.New("ws requires sim")
	}
	return nil
}

// parseArgs builds the effective configuration from the command line.
func parseArgs(args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("ledchain", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := Default()
	path := fs.String("config", "", "path to a YAML configuration file")
	fs.IntVar(&f.Units, "units", f.Units, "number of cascaded MAX7219 units")
	fs.BoolVar(&f.Sim, "sim", f.Sim, "draw on an emulated chain in the terminal")
	fs.StringVar(&f.SPI, "spi", f.SPI, "SPI port to use")
	fs.StringVar(&f.CS, "cs", f.CS, "GPIO pin used as chip-select")
	fs.Float64Var(&f.Brightness, "brightness", f.Brightness, "brightness between 0 and 1")
	fs.Float64Var(&f.Gamma, "gamma", f.Gamma, "gamma applied to brightness")
	fs.DurationVar(&f.Interval, "interval", f.Interval, "time each frame is shown")
	fs.StringVar(&f.Text, "text", f.Text, "text to show")
	fs.StringVar(&f.Font, "font", f.Font, "font: basic or goregular")
	fs.StringVar(&f.WS, "ws", f.WS, "websocket mirror listen address (with -sim)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	c := Default()
	if *path != "" {
		l, err := Load(*path)
		if err != nil {
			return nil, err
		}
		c = *l
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "units":
			c.Units = f.Units
		case "sim":
			c.Sim = f.Sim
		case "spi":
			c.SPI = f.SPI
		case "cs":
			c.CS = f.CS
		case "brightness":
			c.Brightness = f.Brightness
		case "gamma":
			c.Gamma = f.Gamma
		case "interval":
			c.Interval = f.Interval
		case "text":
			c.Text = f.Text
		case "font":
			c.Font = f.Font
		case "ws":
			c.WS = f.WS
		}
	})
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
