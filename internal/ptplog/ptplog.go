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

// Package ptplog is ptptl's structured-logging seam. The orchestrator
// (peer open/close at Debug) and cmd/ptp-demo log through it; the library
// packages (overlay, auth and the rest) do not import it, and their
// workers drop a failed packet or transfer without logging.
package ptplog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetFormatter(&logrus.JSONFormatter{})
		base.SetOutput(os.Stdout)
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel sets the minimum reported level by name ("debug", "info",
// "warn", "error"). Unknown names are ignored.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	root().SetLevel(lvl)
}

// For returns a logger pre-tagged with a "component" field, which the
// orchestrator and cmd/ptp-demo use to identify themselves in the shared
// log stream.
func For(component string) *logrus.Entry {
	return root().WithField("component", component)
}
