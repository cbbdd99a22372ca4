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

// Package collect implements spec.md §4.H's collection indexer: a set of
// directory-root sources, each with an extension filter and an opaque
// context, rescanned into a list of file entries that survives repeat
// scans (unchanged files keep their id and position) and supports glob
// lookup.
package collect

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// Source is one configured scan root.
type Source struct {
	Root       string
	Extensions string // semicolon-separated, case-insensitive, "." implied
	Context    any
}

// Entry is one indexed file.
type Entry struct {
	ID      uint64
	Path    string
	Size    int64
	Context any
}

// Collection holds configured sources and the entries from the most
// recent Rescan.
type Collection struct {
	mu      sync.Mutex
	sources []Source

	order  []uint64
	byID   map[uint64]*Entry
	byPath map[string]uint64
	nextID uint64
}

// New creates an empty Collection with no sources.
func New() *Collection {
	return &Collection{
		byID:   make(map[uint64]*Entry),
		byPath: make(map[string]uint64),
	}
}

// AddSource registers a scan root; it takes effect on the next Rescan.
func (c *Collection) AddSource(root, extensions string, context any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, Source{Root: root, Extensions: extensions, Context: context})
}

// Rescan walks every configured source's root depth-first. Regular files
// whose extension matches the source's filter become entries: files
// already indexed keep their id and move to the head only if they are
// new, survivors keep their existing position; entries not seen this
// pass are dropped. I/O errors walking an individual directory are
// silently skipped, per spec.md §4.H's documented side effect.
func (c *Collection) Rescan() {
	c.mu.Lock()
	sources := append([]Source(nil), c.sources...)
	c.mu.Unlock()

	seen := make(map[string]fileHit)
	var freshOrder []string // paths newly discovered this pass, in walk order

	for _, src := range sources {
		filters := parseExtensions(src.Extensions)
		_ = filepath.WalkDir(src.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries, don't abort the walk
			}
			if d.IsDir() {
				return nil
			}
			if !matchesFilter(path, filters) {
				return nil
			}
			info, ierr := d.Info()
			if ierr != nil {
				return nil
			}
			if _, already := seen[path]; !already {
				freshOrder = append(freshOrder, path)
			}
			seen[path] = fileHit{size: info.Size(), context: src.Context}
			return nil
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var newOrder []uint64
	for _, id := range c.order {
		e := c.byID[id]
		hit, ok := seen[e.Path]
		if !ok {
			delete(c.byID, id)
			delete(c.byPath, e.Path)
			continue
		}
		e.Size = hit.size
		newOrder = append(newOrder, id)
		delete(seen, e.Path)
	}

	var headIDs []uint64
	for _, path := range freshOrder {
		hit, ok := seen[path]
		if !ok {
			continue // already claimed by a survivor above
		}
		c.nextID++
		id := c.nextID
		e := &Entry{ID: id, Path: path, Size: hit.size, Context: hit.context}
		c.byID[id] = e
		c.byPath[path] = id
		headIDs = append(headIDs, id)
	}

	c.order = append(headIDs, newOrder...)
}

type fileHit struct {
	size    int64
	context any
}

func parseExtensions(filter string) []string {
	var out []string
	for _, part := range strings.Split(filter, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, strings.ToLower(part))
	}
	return out
}

func matchesFilter(path string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range filters {
		if ext == f {
			return true
		}
	}
	return false
}

// Len returns the number of entries from the most recent Rescan.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Entries returns a snapshot of all entries, head to tail.
func (c *Collection) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Get returns the entry with the given id.
func (c *Collection) Get(id uint64) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	return e, ok
}

// Find returns every entry whose basename matches pattern: a glob
// supporting '*', '?', and '\' as an escape character, matched
// case-insensitively. Matching is against filepath.Base(e.Path), not
// the full path — filepath.Match never lets '*'/'?' cross a '/', so
// matching the full path would only ever work for entries with no
// directory component.
func (c *Collection) Find(pattern string) []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	lowerPattern := strings.ToLower(pattern)
	var out []*Entry
	for _, id := range c.order {
		e := c.byID[id]
		matched, err := filepath.Match(lowerPattern, strings.ToLower(filepath.Base(e.Path)))
		if err == nil && matched {
			out = append(out, e)
		}
	}
	return out
}
