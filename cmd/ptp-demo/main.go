// Copyright (C) 2025 ptptl-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// ptp-demo wires one orchestrator end to end: it creates a fresh
// in-memory store holding one new identity, opens an overlay listener,
// starts the metrics scrape server, and joins a demo group, logging the
// peer, search-hit, join and membership callbacks as they fire (the
// transfer callbacks are not logged).
// There is no CLI or GUI here — §1 puts both out of scope — this is a
// composition sample, not a front end.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahenroid/ptptl-0.2/identity"
	"github.com/ahenroid/ptptl-0.2/internal/config"
	"github.com/ahenroid/ptptl-0.2/internal/metrics"
	"github.com/ahenroid/ptptl-0.2/internal/ptplog"
	"github.com/ahenroid/ptptl-0.2/orchestrator"
	"github.com/ahenroid/ptptl-0.2/overlay"
	"github.com/ahenroid/ptptl-0.2/store"
)

var log = ptplog.For("ptp-demo")

type demoEvents struct {
	orchestrator.NoopEvents
}

func (demoEvents) OnPeerOpen(p *overlay.Peer) {
	log.Info("peer connected")
}

func (demoEvents) OnPeerClose(p *overlay.Peer) {
	log.Info("peer disconnected")
}

func (demoEvents) OnSearchHit(hit overlay.FileHandle) {
	log.WithField("name", hit.Name).Info("search hit")
}

func (demoEvents) OnJoinResult(groupName string, status overlay.JoinStatus, err error) {
	log.WithField("group", groupName).WithField("status", status).Info("group join result")
}

func (demoEvents) OnMembershipAccept(groupName, commonName string) bool {
	log.WithField("group", groupName).WithField("peer", commonName).Info("membership accepted")
	return true
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	name := flag.String("name", "ptp-demo", "common name for the demo identity")
	flag.Parse()

	ptplog.SetLevel("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	st := store.New()
	local, err := identity.New(*name)
	if err != nil {
		log.WithError(err).Fatal("failed to mint demo identity")
	}
	if _, err := st.InsertIdentity(local, *name, true); err != nil {
		log.WithError(err).Fatal("failed to seed store")
	}

	o, err := orchestrator.New(st, 0, uint16(cfg.Overlay.Port), 0, demoEvents{})
	if err != nil {
		log.WithError(err).Fatal("failed to start orchestrator")
	}
	defer o.Close()

	if err := o.ListenPort(cfg.Overlay.Port); err != nil {
		log.WithError(err).Fatal("failed to listen")
	}
	log.WithField("port", cfg.Overlay.Port).Info("overlay listening")

	metricsAddr := fmt.Sprintf(":%d", cfg.Overlay.HTTPSamplePort)
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", metricsAddr).Info("metrics server listening at /metrics")

	if _, status := o.JoinGroup("demo", 500*time.Millisecond, os.TempDir()); status == overlay.JoinError {
		log.Warn("demo group join failed")
	}

	log.Info("ptp-demo running, press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(ctx)
}
