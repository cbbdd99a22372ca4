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
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahenroid/ptptl-0.2/identity"
	"github.com/ahenroid/ptptl-0.2/overlay"
	"github.com/ahenroid/ptptl-0.2/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	local, err := identity.New("Local")
	require.NoError(t, err)

	st := store.New()
	_, err = st.InsertIdentity(local, "local", true)
	require.NoError(t, err)
	return st
}

func TestNewFailsWithoutLocalIdentity(t *testing.T) {
	st := store.New()
	_, err := New(st, 0, 0, 0, nil)
	assert.ErrorIs(t, err, ErrNoLocalIdentity)
}

func TestNewSucceedsAndDefaultsEvents(t *testing.T) {
	st := newTestStore(t)
	o, err := New(st, 0, 0, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, o.Node)
	assert.Equal(t, NoopEvents{}, o.events)
}

func TestTwoOrchestratorsSearchPublicFile(t *testing.T) {
	serverStore := newTestStore(t)
	server, err := New(serverStore, 0, 0, 0, nil)
	require.NoError(t, err)
	defer server.Close()

	listener, err := server.Node.ListenPort(0)
	require.NoError(t, err)

	shareDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(shareDir, "report.txt"), []byte("hello"), 0o600))
	server.Node.AddShared(shareDir, "", "")
	server.Node.Rescan()

	clientStore := newTestStore(t)
	client, err := New(clientStore, 0, 0, 0, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.AddPeer("127.0.0.1", listener.Port, time.Second)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	hits := make(chan overlay.FileHandle, 1)
	client.Search("report", nil, func(hit overlay.FileHandle) {
		hits <- hit
	}, nil)

	select {
	case hit := <-hits:
		assert.Equal(t, "report.txt", hit.Name)
	case <-time.After(time.Second):
		t.Fatal("expected a search hit for the shared file")
	}
}

func TestJoinGroupInvokesEvents(t *testing.T) {
	recorder := &recordingEvents{}
	st := newTestStore(t)
	o, err := New(st, 0, 0, 0, recorder)
	require.NoError(t, err)
	defer o.Close()

	g, status := o.JoinGroup("example", time.Millisecond, t.TempDir())
	require.NotNil(t, g)
	assert.Equal(t, overlay.JoinCreated, status)
	assert.Equal(t, "example", recorder.joinedGroup)
}

func TestGetStopStopsOnlyIssuedIDs(t *testing.T) {
	st := newTestStore(t)
	o, err := New(st, 0, 0, 0, nil)
	require.NoError(t, err)
	defer o.Close()

	hit := overlay.FileHandle{Name: "missing", Ref: 1, IP: 0x7f000001, Port: 1}
	var buf bytes.Buffer
	id := o.Get(hit, &buf, 10*time.Millisecond)
	assert.True(t, o.GetStop(id), "a freshly started transfer id is stoppable")

	// an unknown id (never issued) is never stoppable
	assert.False(t, o.GetStop(id+1000))
}

type recordingEvents struct {
	NoopEvents
	joinedGroup string
}

func (r *recordingEvents) OnJoinResult(groupName string, status overlay.JoinStatus, err error) {
	r.joinedGroup = groupName
}
