// SPDX-License-Identifier: MIT
//
// Package tui draws the live spectrum in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectrogram/internal/audio"
	"spectrogram/internal/fourier"
	"spectrogram/internal/scale"
)

const (
	DefaultRefresh = 33 * time.Millisecond
	DefaultDecay   = 0.9
	labelWidth     = 8
)

var (
	barLow   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	barMid   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	barHigh  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C5C5C"))
)

// partial block glyphs, one per eighth of a cell.
var eighths = []string{"", "▏", "▎", "▍", "▌", "▋", "▊", "▉"}

// History cells shade by level and colour by pan, fully left first.
var (
	shades    = []string{" ", "░", "▒", "▓", "█"}
	panStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("#00AFFF")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#5F87FF")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#AF87FF")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FF87AF")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
	}
)

// LatestSource supplies the most recent spectrum, or nil before the first.
type LatestSource interface {
	Latest() *fourier.Spectrum
}

// Switcher moves capture to another device.
type Switcher interface {
	Devices() ([]audio.Device, error)
	SwitchDevice(ctx context.Context, deviceID int, sampleRate float64) error
}

// Options configures the live view.
type Options struct {
	Title        string
	Axis         scale.LogAxis
	MinDB, MaxDB float32
	Decay        float32       // Bar fall-off per refresh; DefaultDecay when zero.
	Refresh      time.Duration // DefaultRefresh when zero.
	Switcher     Switcher      // Nil disables the device picker.
}

type viewMode int

const (
	barsMode viewMode = iota
	stereoMode
	historyMode
	numModes
)

func (v viewMode) String() string {
	switch v {
	case stereoMode:
		return "stereo"
	case historyMode:
		return "history"
	default:
		return "bars"
	}
}

type tickMsg time.Time

type switchedMsg struct {
	device audio.Device
	rate   float64
	err    error
}

type spectrumKeys struct {
	Quit, Pause, Mode, Devices key.Binding
}

var keysSpectrum = spectrumKeys{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Pause:   key.NewBinding(key.WithKeys(" ", "p")),
	Mode:    key.NewBinding(key.WithKeys("m")),
	Devices: key.NewBinding(key.WithKeys("d")),
}

// SpectrumModel renders one bar per axis row, highest frequency on top.
// Bars mode shows the louder channel with peak decay; stereo mode shows the
// left channel growing left and the right channel growing right. History
// mode scrolls past columns right to left, coloured by stereo pan.
type SpectrumModel struct {
	source  LatestSource
	opts    Options
	bars    *scale.Bars
	history *scale.History

	levels []float32
	column []scale.Level
	last   *fourier.Spectrum

	mode   viewMode
	paused bool
	picker *DeviceListModel
	status string

	width, height int
}

// NewSpectrumModel returns a live view polling source.
func NewSpectrumModel(source LatestSource, opts Options) SpectrumModel {
	if opts.Decay == 0 {
		opts.Decay = DefaultDecay
	}
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Title == "" {
		opts.Title = "Spectrogram"
	}
	return SpectrumModel{
		source:  source,
		opts:    opts,
		bars:    scale.NewBars(opts.Axis, opts.MinDB, opts.MaxDB, opts.Decay),
		history: scale.NewHistory(plotWidth(80)),
		levels:  make([]float32, opts.Axis.Rows),
		column:  make([]scale.Level, opts.Axis.Rows),
		width:   80,
		height:  24,
	}
}

func (m SpectrumModel) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m SpectrumModel) Init() tea.Cmd {
	return m.tick()
}

func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if !m.paused {
			m.refresh()
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.history.Resize(plotWidth(m.width))
		if m.picker != nil {
			p, cmd := m.picker.update(msg)
			m.picker = &p
			return m, cmd
		}
		return m, nil

	case DeviceSelectedMsg:
		m.picker = nil
		m.status = fmt.Sprintf("Switching to %s...", msg.Device.Name)
		return m, m.switchDevice(msg)

	case PickerClosedMsg:
		m.picker = nil
		return m, nil

	case switchedMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("Switch failed: " + msg.err.Error())
		} else {
			m.status = fmt.Sprintf("Using %s at %.0f Hz", msg.device.Name, msg.rate)
			m.bars = scale.NewBars(m.opts.Axis, m.opts.MinDB, m.opts.MaxDB, m.opts.Decay)
			m.history.Reset()
		}
		return m, nil
	}

	if m.picker != nil {
		p, cmd := m.picker.update(msg)
		m.picker = &p
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keysSpectrum.Quit):
			return m, tea.Quit
		case key.Matches(msg, keysSpectrum.Pause):
			m.paused = !m.paused
		case key.Matches(msg, keysSpectrum.Mode):
			m.mode = (m.mode + 1) % numModes
		case key.Matches(msg, keysSpectrum.Devices):
			if m.opts.Switcher == nil {
				m.status = "Device switching is not available for this source"
				return m, nil
			}
			p := NewDeviceListModel(m.opts.Switcher.Devices)
			p, _ = p.update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
			m.picker = &p
			return m, p.Init()
		}
	}
	return m, nil
}

// refresh pulls the latest spectrum.
func (m *SpectrumModel) refresh() {
	s := m.source.Latest()
	if s == nil {
		return
	}
	fresh := s != m.last
	m.last = s
	m.levels = m.bars.Update(s)
	m.column = scale.Column(s, m.opts.Axis, m.opts.MinDB, m.opts.MaxDB, m.column)
	if fresh {
		m.history.Push(m.column)
	}
}

func (m SpectrumModel) switchDevice(sel DeviceSelectedMsg) tea.Cmd {
	sw := m.opts.Switcher
	return func() tea.Msg {
		err := sw.SwitchDevice(context.Background(), sel.Device.ID, sel.SampleRate)
		return switchedMsg{device: sel.Device, rate: sel.SampleRate, err: err}
	}
}

func (m SpectrumModel) View() string {
	if m.picker != nil {
		return m.picker.View()
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.opts.Title))
	sb.WriteString("  " + infoStyle.Render(m.summary()) + "\n\n")

	barWidth := plotWidth(m.width)
	for _, row := range visibleRows(m.opts.Axis.Rows, max(m.height-5, 1)) {
		label := formatHz(m.opts.Axis.Range(row).Center())
		sb.WriteString(dimStyle.Render(fmt.Sprintf("%*s ", labelWidth-1, label)))
		switch m.mode {
		case historyMode:
			sb.WriteString(m.historyRow(row, barWidth))
		case stereoMode:
			half := barWidth / 2
			l, r := m.column[row].Left, m.column[row].Right
			sb.WriteString(colorFor(l).Render(padLeft(bar(l, half), half)))
			sb.WriteString(dimStyle.Render("│"))
			sb.WriteString(colorFor(r).Render(bar(r, half)))
		default:
			sb.WriteString(colorFor(m.levels[row]).Render(bar(m.levels[row], barWidth)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(m.status + "  ")
	}
	help := "space: pause • m: mode • q: quit"
	if m.opts.Switcher != nil {
		help = "d: devices • " + help
	}
	sb.WriteString(infoStyle.Render(help))
	return sb.String()
}

// historyRow draws one axis row of the history, newest column on the right.
func (m SpectrumModel) historyRow(row, width int) string {
	var sb strings.Builder
	n := m.history.Len()
	if n < width {
		sb.WriteString(strings.Repeat(" ", width-n))
	}
	for i := max(n-width, 0); i < n; i++ {
		l := m.history.Column(i)[row]
		sb.WriteString(panStyle(l.Balance()).Render(shade(l.Mono())))
	}
	return sb.String()
}

func (m SpectrumModel) summary() string {
	mode := m.mode.String()
	if m.last == nil {
		return "waiting for audio • " + mode
	}
	s := fmt.Sprintf("%.0f Hz • %d bins • %s", m.last.SampleRate(), m.last.NumBins(), mode)
	if m.paused {
		s += " • paused"
	}
	return s
}

// visibleRows picks at most limit rows spread evenly over n.
func visibleRows(n, limit int) []int {
	if n <= limit {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := make([]int, limit)
	for i := range rows {
		rows[i] = i * n / limit
	}
	return rows
}

// bar draws level in [0, 1] as a run of block glyphs at most width cells wide.
func bar(level float32, width int) string {
	level = min(max(level, 0), 1)
	cells := float64(level) * float64(width)
	full := int(cells)
	frac := int((cells - math.Floor(cells)) * 8)
	return strings.Repeat("█", full) + eighths[frac]
}

func plotWidth(termWidth int) int {
	return max(termWidth-labelWidth-1, 4)
}

func shade(level float32) string {
	i := int(min(max(level, 0), 1)*float32(len(shades)-1) + 0.5)
	return shades[i]
}

// panStyle maps the left share of a cell to a colour, fully left first.
func panStyle(balance float32) lipgloss.Style {
	i := int((1-min(max(balance, 0), 1))*float32(len(panStyles)-1) + 0.5)
	return panStyles[i]
}

func padLeft(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}

func colorFor(level float32) lipgloss.Style {
	switch {
	case level > 0.8:
		return barHigh
	case level > 0.5:
		return barMid
	default:
		return barLow
	}
}

func formatHz(f float64) string {
	if f >= 1000 {
		return fmt.Sprintf("%.1fk", f/1000)
	}
	return fmt.Sprintf("%.0f", f)
}

// Run starts the live view full screen and blocks until the user quits or
// ctx is done.
func Run(ctx context.Context, source LatestSource, opts Options) error {
	_, err := tea.NewProgram(NewSpectrumModel(source, opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
