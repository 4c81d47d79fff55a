// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectrogram/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// DeviceSelectedMsg is emitted when the user confirms a device and rate.
type DeviceSelectedMsg struct {
	Device     audio.Device
	SampleRate float64
}

// PickerClosedMsg is emitted when the picker is dismissed without a choice.
type PickerClosedMsg struct{}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// deviceItem adapts a Device to the list component.
type deviceItem struct{ audio.Device }

func (d deviceItem) Title() string {
	title := fmt.Sprintf("[%d] %s", d.ID, d.Name)
	if d.Default {
		title += " (default)"
	}
	return title
}

func (d deviceItem) Description() string {
	return fmt.Sprintf("%s • %d in • %.0f Hz", d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
}

func (d deviceItem) FilterValue() string { return d.Name }

type pickerKeys struct {
	Choose, Back, Up, Down, Quit key.Binding
}

var keysPicker = pickerKeys{
	Choose: key.NewBinding(key.WithKeys("enter")),
	Back:   key.NewBinding(key.WithKeys("esc")),
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// DeviceListModel lists input devices and lets the user pick one and a
// sample rate. Embedded in the live view it reports the choice with a
// DeviceSelectedMsg; standalone it quits the program and keeps the choice in
// Selected.
type DeviceListModel struct {
	list         list.Model
	fetch        func() ([]audio.Device, error)
	err          error
	activeScreen ScreenType
	standalone   bool

	sampleRates     []float64
	sampleRateIndex int

	Selected *DeviceSelectedMsg
}

// NewDeviceListModel creates a picker that loads devices with fetch.
func NewDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Input Devices"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetStatusBarItemName("device", "devices")
	l.DisableQuitKeybindings()
	return DeviceListModel{list: l, fetch: fetch, activeScreen: ListScreen}
}

// Init loads the device list.
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := m.update(msg)
	return m, cmd
}

func (m DeviceListModel) update(msg tea.Msg) (DeviceListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, max(msg.Height-2, 1))

	case devicesMsg:
		items := make([]list.Item, len(msg.devices))
		for i, d := range msg.devices {
			items[i] = deviceItem{d}
		}
		return m, m.list.SetItems(items)

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if m.err != nil || key.Matches(msg, keysPicker.Quit) && m.list.FilterState() != list.Filtering {
			return m, m.close()
		}
		if m.activeScreen == ConfigScreen {
			return m.updateConfig(msg)
		}
		if m.list.FilterState() != list.Filtering {
			switch {
			case key.Matches(msg, keysPicker.Back) && m.list.FilterState() == list.Unfiltered:
				return m, m.close()
			case key.Matches(msg, keysPicker.Choose):
				item, ok := m.list.SelectedItem().(deviceItem)
				if !ok {
					return m, nil
				}
				m.activeScreen = ConfigScreen
				m.sampleRates, m.sampleRateIndex = sampleRatesFor(item.Device)
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m DeviceListModel) updateConfig(msg tea.KeyMsg) (DeviceListModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keysPicker.Back):
		m.activeScreen = ListScreen
	case key.Matches(msg, keysPicker.Up):
		if m.sampleRateIndex > 0 {
			m.sampleRateIndex--
		}
	case key.Matches(msg, keysPicker.Down):
		if m.sampleRateIndex < len(m.sampleRates)-1 {
			m.sampleRateIndex++
		}
	case key.Matches(msg, keysPicker.Choose):
		item, _ := m.list.SelectedItem().(deviceItem)
		sel := DeviceSelectedMsg{Device: item.Device, SampleRate: m.sampleRates[m.sampleRateIndex]}
		m.Selected = &sel
		if m.standalone {
			return m, tea.Quit
		}
		return m, func() tea.Msg { return sel }
	}
	return m, nil
}

func (m DeviceListModel) close() tea.Cmd {
	if m.standalone {
		return tea.Quit
	}
	return func() tea.Msg { return PickerClosedMsg{} }
}

// sampleRatesFor offers the device default plus the common rates, ascending,
// with the default preselected.
func sampleRatesFor(d audio.Device) ([]float64, int) {
	rates := slices.Clone(commonSampleRates)
	if d.DefaultSampleRate > 0 && !slices.Contains(rates, d.DefaultSampleRate) {
		rates = append(rates, d.DefaultSampleRate)
		slices.Sort(rates)
	}
	idx := max(slices.Index(rates, d.DefaultSampleRate), 0)
	return rates, idx
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + infoStyle.Render("Press any key to close.")
	}
	if m.activeScreen == ListScreen {
		return m.list.View() + "\n" + infoStyle.Render("↑/↓: Navigate • /: Filter • Enter: Configure • Esc: Close")
	}
	return m.renderDeviceConfig() + "\n" + infoStyle.Render("↑/↓: Change Rate • Enter: Use Device • Esc: Back")
}

// renderDeviceConfig formats the sample rate screen.
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	item, _ := m.list.SelectedItem().(deviceItem)

	sb.WriteString(titleStyle.Render("Device Configuration"))
	fmt.Fprintf(&sb, "\n\n%s\n\nSample Rate:\n", item.Name)
	for i, rate := range m.sampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz", marker, rate)
		if rate == item.DefaultSampleRate {
			line += " (device default)"
		}
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// StartDeviceListUI runs the picker full screen and returns the choice, or
// nil when the user quit without choosing.
func StartDeviceListUI(fetch func() ([]audio.Device, error)) (*DeviceSelectedMsg, error) {
	m := NewDeviceListModel(fetch)
	m.standalone = true
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	return final.(DeviceListModel).Selected, nil
}
