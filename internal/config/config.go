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

// Package config holds the process-wide settings spec.md §6.3
// enumerates: proxy fallback, default ports, challenge expiry, the
// secure store's archive/MAC passwords, the RSA modulus size, and the
// PBKDF2 iteration count.
package config

import "time"

// Config is the top-level, YAML-unmarshalled configuration object.
type Config struct {
	Environment string        `yaml:"environment"`
	Overlay     OverlayConfig `yaml:"overlay"`
	Proxy       ProxyConfig   `yaml:"proxy"`
	Store       StoreConfig   `yaml:"store"`
	Crypto      CryptoConfig  `yaml:"crypto"`
	Logging     LoggingConfig `yaml:"logging"`
}

// OverlayConfig configures the listening ports the orchestrator opens.
type OverlayConfig struct {
	Port            int           `yaml:"port"`
	HTTPSamplePort  int           `yaml:"http_sample_port"`
	ChallengeExpiry time.Duration `yaml:"challenge_expiry"`
}

// ProxyConfig is the process-wide HTTP proxy fallback spec.md §4.I
// describes: a direct connect is attempted first; on failure traffic
// latches onto the proxy for the life of the process.
type ProxyConfig struct {
	IP                string        `yaml:"ip"`
	Port              int           `yaml:"port"`
	DirectTryTimeout  time.Duration `yaml:"direct_try_timeout"`
}

// StoreConfig configures the secure store's on-disk archive.
type StoreConfig struct {
	Path             string `yaml:"path"`
	ArchivePassword  string `yaml:"archive_password" env:"PTP_ARCHIVE_PASSWORD"`
	MACPassword      string `yaml:"mac_password" env:"PTP_MAC_PASSWORD"`
	HasArchivePasswd bool   `yaml:"-"`
	HasMACPasswd     bool   `yaml:"-"`
}

// CryptoConfig configures the RSA modulus size and PBKDF2 iteration
// count spec.md §6.1 calls out as configurable primitive parameters.
type CryptoConfig struct {
	RSABits           int `yaml:"rsa_bits"`
	PBKDF2Iterations  int `yaml:"pbkdf2_iterations"`
}

// LoggingConfig configures the structured logger's minimum level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultOverlayPort is the Gnutella-compatible default port (§6.3).
const DefaultOverlayPort = 6346

// DefaultHTTPSamplePort is the sample HTTP surface's default port.
const DefaultHTTPSamplePort = 8080

// DefaultProxyPort is the default proxy HTTP port.
const DefaultProxyPort = 80

// Default returns a Config populated with spec.md §6.3's defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		Overlay: OverlayConfig{
			Port:            DefaultOverlayPort,
			HTTPSamplePort:  DefaultHTTPSamplePort,
			ChallengeExpiry: 60 * time.Second,
		},
		Proxy: ProxyConfig{
			Port:             DefaultProxyPort,
			DirectTryTimeout: 2 * time.Second,
		},
		Crypto: CryptoConfig{
			RSABits:          1024,
			PBKDF2Iterations: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
