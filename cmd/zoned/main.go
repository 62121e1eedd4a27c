// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command zoned is the zone server entrypoint. It mirrors the teacher's
// server_main/main.go shape (flag-parsed port/options, a Cloud-style
// fallback-to-offline persistence backend, hub.Run in a goroutine, then
// block serving HTTP) layered over config.Load for the rest of spec.md §6's
// zone configuration.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boundlessrealms/zoneserver/aura"
	"github.com/boundlessrealms/zoneserver/bus"
	"github.com/boundlessrealms/zoneserver/config"
	"github.com/boundlessrealms/zoneserver/log"
	"github.com/boundlessrealms/zoneserver/migrate"
	"github.com/boundlessrealms/zoneserver/persistence"
	"github.com/boundlessrealms/zoneserver/world"
	"github.com/boundlessrealms/zoneserver/zone"
)

func main() {
	var (
		configPath  string
		zoneID      uint
		port        int
		tokenSecret string
	)
	flag.StringVar(&configPath, "config", "", "path to zone YAML config")
	flag.UintVar(&zoneID, "zone-id", 0, "override config's zone_id (0 = use config)")
	flag.IntVar(&port, "port", 0, "override config's transport.port (0 = use config)")
	flag.StringVar(&tokenSecret, "migration-secret", "", "shared HMAC secret for reconnect tokens (random if empty, single-zone only)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zoned: config:", err)
		os.Exit(1)
	}
	if zoneID != 0 {
		cfg.ZoneID = uint32(zoneID)
	}
	if port != 0 {
		cfg.Transport.Port = port
	}

	log.Configure(logFormatFromConfig(cfg.LogFormat), parseLevel(cfg.LogLevel))
	logger := log.Zone(log.For("zoned"), cfg.ZoneID)

	secret := []byte(tokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.WithError(err).Fatal("generate migration token secret")
		}
		logger.Warn("no -migration-secret given; generated a random one, which only works for a single-zone deployment")
	}
	issuer := migrate.NewTokenIssuer(secret, 0)

	b, err := bus.New(cfg.Session.Path)
	if err != nil {
		logger.WithError(err).Fatal("open cross-zone bus")
	}
	defer b.Close()

	onPersistErr := func(op string, err error) {
		logger.WithField("op", op).WithError(err).Error("persistence operation failed")
	}
	persist, err := persistence.New(cfg.Session.Path, cfg.CombatLog.Region, cfg.CombatLog.Stage, onPersistErr)
	if err != nil {
		logger.WithError(err).Warn("persistence backend unavailable, running offline")
		persist = nil
	}
	var adapter persistence.Adapter = persistence.Offline{}
	if persist != nil {
		adapter = persist
		defer persist.Close()
	}

	externalLogin := func(token string, playerID uint64) (world.PlayerID, error) {
		// Account authentication is an external collaborator (spec.md §1
		// "out of scope"); a real deployment wires this to that service.
		// Absent one, any non-empty token is accepted as the given player.
		if token == "" {
			return 0, fmt.Errorf("zoned: empty auth token")
		}
		return world.PlayerID(playerID), nil
	}

	h := zone.NewHub(cfg, adapter, b, issuer, directionNeighbors(cfg.Neighbors), time.Now().UnixNano(), externalLogin)

	go h.Run()
	defer h.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.Transport.Host, cfg.Transport.Port)
	logger.WithField("addr", addr).Info("zone server listening")
	if err := h.Transport.ListenAndServe(addr); err != nil {
		logger.WithError(err).Fatal("transport ListenAndServe")
	}
}

// directionNeighbors converts config's direction-name-keyed neighbor map
// into the aura package's typed Direction keys.
func directionNeighbors(cfg map[string]uint32) map[aura.Direction]world.ZoneID {
	out := make(map[aura.Direction]world.ZoneID, len(cfg))
	for dir, id := range cfg {
		out[aura.Direction(dir)] = world.ZoneID(id)
	}
	return out
}

func parseLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

func logFormatFromConfig(format string) log.Format {
	if format == string(log.FormatJSON) {
		return log.FormatJSON
	}
	return log.FormatText
}
