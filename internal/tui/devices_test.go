// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"cqtscope/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "USB Mic", MaxInputChannels: 2, DefaultSampleRate: 48000},
}

func update(t *testing.T, m DeviceListModel, msg tea.Msg) (DeviceListModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(DeviceListModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func loadedModel(t *testing.T) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })
	msg := m.Init()()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	m, _ = update(t, m, msg)
	return m
}

func TestDeviceListModel_Select(t *testing.T) {
	m := loadedModel(t)
	if !strings.Contains(m.View(), "USB Mic (Input)") {
		t.Fatalf("device list not rendered:\n%s", m.View())
	}

	// Output-only devices cannot be configured.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.activeScreen != ListScreen {
		t.Fatal("entered config screen for an output device")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.activeScreen != ConfigScreen {
		t.Fatal("expected config screen")
	}
	if SampleRates[m.sampleRateIndex] != 48000 {
		t.Errorf("default rate = %v, want device default 48000", SampleRates[m.sampleRateIndex])
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRight}) // clamped at 2
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit command after confirming")
	}

	sel, ok := m.Selection()
	if !ok {
		t.Fatal("selection not confirmed")
	}
	want := Selection{DeviceID: 1, DeviceName: "USB Mic", SampleRate: 44100, Channels: 2}
	if sel != want {
		t.Errorf("Selection() = %+v, want %+v", sel, want)
	}
}

func TestDeviceListModel_EscapeReturnsToList(t *testing.T) {
	m := loadedModel(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.activeScreen != ListScreen {
		t.Error("Esc should return to the list")
	}
	if _, ok := m.Selection(); ok {
		t.Error("no selection expected")
	}
}

func TestDeviceListModel_LoadError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no portaudio") })
	m, _ = update(t, m, m.Init()())
	if !strings.Contains(m.View(), "no portaudio") {
		t.Errorf("error not rendered: %q", m.View())
	}
}
