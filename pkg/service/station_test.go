// Zaparoo RFID Station
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo RFID Station.
//
// Zaparoo RFID Station is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo RFID Station is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo RFID Station.  If not, see <http://www.gnu.org/licenses/>.

package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/ZaparooProject/rfid-station/pkg/history"
	"github.com/ZaparooProject/rfid-station/pkg/readers"
	"github.com/ZaparooProject/rfid-station/pkg/readers/esp32"
	"github.com/ZaparooProject/rfid-station/pkg/readers/testutils"
	"github.com/ZaparooProject/rfid-station/pkg/validation"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testHistoryPath = "/data/historico.csv"

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestConfig(t *testing.T, mods ...func(*config.Values)) *config.Instance {
	t.Helper()
	if os.Getenv(config.CfgEnv) != "" || os.Getenv(config.PortEnv) != "" {
		t.Skip("config environment overrides are set")
	}

	defaults := config.BaseDefaults
	defaults.Serial.Port = "/dev/ttyUSB0"
	defaults.Serial.ReadTimeout = 1
	defaults.Serial.WriteTimeout = 1
	defaults.Serial.SettleDelayMs = 0
	defaults.Serial.ModeSwitchDelayMs = 0
	for _, mod := range mods {
		mod(&defaults)
	}

	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)
	return cfg
}

type fixture struct {
	station *Station
	port    *testutils.MockSerialPort
	factory *testutils.FactoryRecorder
	store   *history.Store
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T, connect bool) *fixture {
	t.Helper()

	port := testutils.NewMockSerialPort()
	factory := testutils.NewFactory(port)
	clock := clockwork.NewFakeClockAt(testNow)
	store := history.NewStore(afero.NewMemMapFs(), testHistoryPath)

	st := New(newTestConfig(t), store, WithPortFactory(factory.Open), WithClock(clock))
	t.Cleanup(func() { _ = st.Close() })

	if connect {
		require.NoError(t, st.Connect(context.Background()))
	}
	return &fixture{station: st, port: port, factory: factory, store: store, clock: clock}
}

func TestConnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	assert.True(t, f.station.Connected())
	assert.Equal(t, "/dev/ttyUSB0", f.station.Port())

	calls := f.factory.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/dev/ttyUSB0", calls[0].Path)
	assert.Equal(t, config.DefaultBaudRate, calls[0].Mode.BaudRate)
}

func TestConnectFailure(t *testing.T) {
	t.Parallel()

	st := New(newTestConfig(t), history.NewStore(afero.NewMemMapFs(), testHistoryPath),
		WithPortFactory(testutils.FailingFactory))
	defer func() { _ = st.Close() }()

	err := st.Connect(context.Background())
	require.ErrorIs(t, err, readers.ErrConnection)
	assert.False(t, st.Connected())

	_, err = st.Read(context.Background())
	require.ErrorIs(t, err, readers.ErrNotConnected)

	_, err = st.Write(context.Background(), "HELLO")
	require.ErrorIs(t, err, readers.ErrNotConnected)
}

func TestReconnectClosesPreviousSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	require.NoError(t, f.station.Connect(context.Background()))

	// the mock factory hands out the same port, so it ends up closed
	assert.True(t, f.port.IsClosed())
	assert.Len(t, f.factory.Calls(), 2)
}

func TestReadPersistsCompleteResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.port.Respond(esp32.CmdRead, "UID:04A31B2C\n", "DADOS_LIDOS:HELLO     \n")

	res, err := f.station.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, esp32.ReadResult{UID: "04A31B2C", Payload: "HELLO"}, res)

	records, err := f.store.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []history.Record{
		{Timestamp: "2025-03-14 09:26:53", UID: "04A31B2C", Payload: "HELLO"},
	}, records)
}

func TestReadDoesNotPersistIncomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wantErr error
		chunks  []string
	}{
		{name: "payload without uid", chunks: []string{"DADOS_LIDOS:orphan\n"}},
		{name: "timeout with uid only", chunks: []string{"UID:1234\n"}, wantErr: readers.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, false)
			// the read timeout needs a real clock to expire
			f.station.clock = clockwork.NewRealClock()
			require.NoError(t, f.station.Connect(context.Background()))
			f.port.Respond(esp32.CmdRead, tt.chunks...)

			_, err := f.station.Read(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			_, err = f.store.LoadAll()
			require.ErrorIs(t, err, history.ErrNotFound)
		})
	}
}

func TestStartReadCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	type result struct {
		err error
		res esp32.ReadResult
	}
	done := make(chan result, 1)
	require.NoError(t, f.station.StartRead(context.Background(), func(res esp32.ReadResult, err error) {
		done <- result{res: res, err: err}
	}))

	testutils.WaitForWrites(t, f.port, 1, time.Second)
	assert.True(t, f.station.Busy())

	err := f.station.StartRead(context.Background(), func(esp32.ReadResult, error) {})
	require.ErrorIs(t, err, readers.ErrBusy)
	err = f.station.StartWrite(context.Background(), "HELLO", func(esp32.WriteOutcome, error) {})
	require.ErrorIs(t, err, readers.ErrBusy)

	f.station.CancelRead()

	select {
	case out := <-done:
		require.ErrorIs(t, out.err, readers.ErrCancelled)
		assert.Equal(t, esp32.ReadResult{}, out.res)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "read not cancelled")
	}

	assert.Eventually(t, func() bool { return !f.station.Busy() }, time.Second, time.Millisecond)
	_, err = f.store.LoadAll()
	require.ErrorIs(t, err, history.ErrNotFound)
}

func TestStartReadComplete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.port.Respond(esp32.CmdRead, "UID:AA\nDADOS_LIDOS:bb\n")

	done := make(chan error, 1)
	require.NoError(t, f.station.StartRead(context.Background(), func(_ esp32.ReadResult, err error) {
		done <- err
	}))
	require.NoError(t, <-done)

	records, err := f.store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStartWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.port.Respond("HELLO           #", "Write success\n")

	type result struct {
		err     error
		outcome esp32.WriteOutcome
	}
	done := make(chan result, 1)
	require.NoError(t, f.station.StartWrite(context.Background(), "HELLO", func(o esp32.WriteOutcome, err error) {
		done <- result{outcome: o, err: err}
	}))

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, esp32.WriteSuccess, out.outcome)
	assert.Equal(t, []string{esp32.CmdWrite, "HELLO           #"}, f.port.Writes())
}

func TestWriteRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	for _, text := range []string{"", "this text is far too long"} {
		err := f.station.StartWrite(context.Background(), text, func(esp32.WriteOutcome, error) {
			t.Error("done called for invalid payload")
		})
		require.ErrorIs(t, err, readers.ErrInvalidPayload)

		var verr *validation.Error
		require.ErrorAs(t, err, &verr)

		_, err = f.station.Write(context.Background(), text)
		require.ErrorIs(t, err, readers.ErrInvalidPayload)
	}
	assert.Empty(t, f.port.Writes())
}

func TestWriteFailedOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.port.Respond("HELLO           #", "write FAILED\n")

	outcome, err := f.station.Write(context.Background(), "HELLO")
	require.NoError(t, err)
	assert.Equal(t, esp32.WriteFailed, outcome)
}

func TestReadHistorySaveFailure(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.Respond(esp32.CmdRead, "UID:AA\nDADOS_LIDOS:bb\n")
	store := history.NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), testHistoryPath)

	st := New(newTestConfig(t), store, WithPortFactory(testutils.NewFactory(port).Open))
	defer func() { _ = st.Close() }()
	require.NoError(t, st.Connect(context.Background()))

	res, err := st.Read(context.Background())
	require.ErrorIs(t, err, ErrHistorySave)
	assert.True(t, res.Complete())
}

func TestCloseStopsBackgroundRead(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	done := make(chan error, 1)
	require.NoError(t, f.station.StartRead(context.Background(), func(_ esp32.ReadResult, err error) {
		done <- err
	}))
	testutils.WaitForWrites(t, f.port, 1, time.Second)

	require.NoError(t, f.station.Close())
	err := <-done
	require.Error(t, err)
	assert.False(t, errors.Is(err, readers.ErrTimeout))
	assert.False(t, f.station.Connected())
	assert.Same(t, f.store, f.station.History())
}

func TestCancelRightAfterStartRead(t *testing.T) {
	t.Parallel()

	for i := range 10 {
		f := newFixture(t, true)
		f.port.Respond(esp32.CmdRead, "UID:AA\nDADOS_LIDOS:bb\n")

		done := make(chan error, 1)
		require.NoError(t, f.station.StartRead(context.Background(), func(_ esp32.ReadResult, err error) {
			done <- err
		}))
		f.station.CancelRead()

		select {
		case err := <-done:
			require.ErrorIs(t, err, readers.ErrCancelled, "run %d", i)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "read not finished")
		}

		_, err := f.store.LoadAll()
		require.ErrorIs(t, err, history.ErrNotFound, "run %d", i)
	}
}

func TestCancelReadWithoutReadIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.station.CancelRead()
	f.port.Respond(esp32.CmdRead, "UID:AA\nDADOS_LIDOS:bb\n")

	res, err := f.station.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AA", res.UID)
}

func TestCloseDuringConnect(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	clock := clockwork.NewFakeClockAt(testNow)
	cfg := newTestConfig(t, func(v *config.Values) {
		v.Serial.SettleDelayMs = 2000
	})
	st := New(cfg, history.NewStore(afero.NewMemMapFs(), testHistoryPath),
		WithPortFactory(testutils.NewFactory(port).Open), WithClock(clock))

	connected := make(chan error, 1)
	go func() {
		connected <- st.Connect(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	require.NoError(t, st.Close())
	clock.Advance(2 * time.Second)

	select {
	case err := <-connected:
		require.ErrorIs(t, err, readers.ErrNotConnected)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "connect did not return")
	}
	assert.False(t, st.Connected())
	assert.True(t, port.IsClosed())

	require.ErrorIs(t, st.Connect(context.Background()), readers.ErrNotConnected)
}
