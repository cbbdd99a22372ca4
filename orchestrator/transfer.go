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

package orchestrator

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/ahenroid/ptptl-0.2/internal/metrics"
	"github.com/ahenroid/ptptl-0.2/overlay"
	"github.com/ahenroid/ptptl-0.2/symkey"
)

// transfer tracks one in-flight GET the overlay package itself has no
// notion of (§4.K's "in-flight gets" list). Workers may be in the middle
// of an I/O syscall when stopped (spec.md §5); stop only suppresses the
// worker's completion callbacks, it does not interrupt the blocked read.
type transfer struct {
	hit     overlay.FileHandle
	stopped atomic.Bool
}

func (t *transfer) stop() { t.stopped.Store(true) }

// progressWriter reports bytes written so far to onProgress after every
// underlying Write, giving Get/GetGroup a natural progress granularity
// (one callback per read chunk) without polling.
type progressWriter struct {
	dst        io.Writer
	total      int64
	onProgress func(int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.total += int64(n)
	if w.onProgress != nil {
		w.onProgress(w.total)
	}
	return n, err
}

// Get fetches an unauthenticated public-group hit (§4.J "/get/<ref>/<name>")
// in its own goroutine, reporting progress/done/error through Events and
// internal/metrics, and returns immediately with the tracking id.
func (o *Orchestrator) Get(hit overlay.FileHandle, dst io.Writer, timeout time.Duration) uint64 {
	t := &transfer{hit: hit}
	id := o.gets.PushBack(t)
	metrics.TransfersActive.Inc()

	o.group.Go(func() error {
		defer o.gets.Remove(id)
		defer metrics.TransfersActive.Dec()

		pw := &progressWriter{dst: dst, onProgress: func(n int64) {
			if !t.stopped.Load() {
				o.events.OnGetProgress(hit, n)
			}
		}}
		n, err := overlay.FetchFile(hit, pw, timeout)
		if t.stopped.Load() {
			return nil
		}
		if err != nil {
			metrics.TransfersCompleted.WithLabelValues("public", "error").Inc()
			o.events.OnGetError(hit, err)
			return nil
		}
		metrics.TransfersCompleted.WithLabelValues("public", "ok").Inc()
		metrics.TransferBytes.Observe(float64(n))
		o.events.OnGetDone(hit, n)
		return nil
	})
	return id
}

// GetGroup fetches a hit served under a joined group's key
// (§4.J "/gets/<group>/<hex-ref>"), mirroring Get's progress/done/error
// reporting.
func (o *Orchestrator) GetGroup(hit overlay.FileHandle, key *symkey.Key, dst io.Writer, timeout time.Duration) uint64 {
	t := &transfer{hit: hit}
	id := o.gets.PushBack(t)
	metrics.TransfersActive.Inc()

	o.group.Go(func() error {
		defer o.gets.Remove(id)
		defer metrics.TransfersActive.Dec()

		pw := &progressWriter{dst: dst, onProgress: func(n int64) {
			if !t.stopped.Load() {
				o.events.OnGetProgress(hit, n)
			}
		}}
		n, err := overlay.FetchGroupFile(hit, key, pw, timeout)
		if t.stopped.Load() {
			return nil
		}
		if err != nil {
			metrics.TransfersCompleted.WithLabelValues("group", "error").Inc()
			o.events.OnGetError(hit, err)
			return nil
		}
		metrics.TransfersCompleted.WithLabelValues("group", "ok").Inc()
		metrics.TransferBytes.Observe(float64(n))
		o.events.OnGetDone(hit, n)
		return nil
	})
	return id
}

// GetStop marks an in-flight transfer so its completion callbacks are
// suppressed once the blocked read eventually returns; it does not
// interrupt the socket read in progress.
func (o *Orchestrator) GetStop(id uint64) bool {
	t, ok := o.gets.Get(id)
	if !ok {
		return false
	}
	t.stop()
	return true
}
