// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// ledchain shows a test pattern on a chain of MAX7219 8x8 LED matrices.
//
// With -sim, the chain is emulated and drawn in the terminal, and optionally
// streamed to websocket clients with -ws.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ledchain/ledsim"
	"github.com/GermanBionicSystems/ledchain/max7219"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("configuration")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log.Logger); err != nil {
		stop()
		log.Fatal().Err(err).Msg("ledchain")
	}
}

func run(ctx context.Context, cfg *Config, logger zerolog.Logger) error {
	level, err := max7219.IntensityFromFraction(cfg.Brightness, cfg.Gamma)
	if err != nil {
		return err
	}
	face, err := loadFace(cfg.Font)
	if err != nil {
		return err
	}
	opts := max7219.DefaultOpts
	opts.Units = cfg.Units
	opts.Intensity = level
	opts.Logger = &logger

	var port spi.PortCloser
	if cfg.Sim {
		chain := ledsim.NewChain(cfg.Units)
		port = chain
		defer startSim(ctx, chain, cfg.WS, logger)()
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		p, err := spireg.Open(cfg.SPI)
		if err != nil {
			return err
		}
		port = p
		if cfg.CS != "" {
			pin := gpioreg.ByName(cfg.CS)
			if pin == nil {
				_ = p.Close()
				return fmt.Errorf("no GPIO pin named %q", cfg.CS)
			}
			opts.CS = pin
		}
	}
	defer port.Close()

	dev, err := max7219.NewSPI(port, &opts)
	if err != nil {
		return err
	}
	if err := dev.Init(ctx); err != nil {
		return err
	}
	logger.Info().Stringer("dev", dev).Int("intensity", level).Msg("running")
	err = loop(ctx, dev, newScene(dev.Bounds(), cfg.Text, face), cfg.Interval, logger)
	if herr := dev.Halt(); herr != nil && err == nil {
		err = herr
	}
	return err
}

// loop shows each frame for interval until ctx is done.
func loop(ctx context.Context, dev *max7219.Dev, frames []image.Image, interval time.Duration, logger zerolog.Logger) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for i := 0; ; i++ {
		dev.Clear()
		if err := dev.DrawBitmap(image.Point{}, frames[i%len(frames)]); err != nil {
			return err
		}
		if err := dev.Commit(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The chain may hold misaligned words; start over.
			logger.Warn().Err(err).Msg("commit failed, reinitializing")
			if err := dev.Init(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// startSim renders chain in the terminal and serves it over websocket when
// addr is set. The returned function stops both.
func startSim(ctx context.Context, chain *ledsim.Chain, addr string, logger zerolog.Logger) func() {
	console := ledsim.NewConsole(nil, nil)
	ch, cancel := chain.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := console.Run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("console")
		}
	}()

	var srv *http.Server
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", ledsim.NewMirror(chain, &logger))
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", addr).Msg("websocket mirror")
			}
		}()
		logger.Info().Str("addr", addr).Msg("websocket mirror listening on /ws")
	}

	return func() {
		if srv != nil {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			_ = srv.Shutdown(sctx)
			scancel()
		}
		cancel()
		wg.Wait()
		_ = console.Halt()
	}
}
