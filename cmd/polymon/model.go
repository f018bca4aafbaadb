package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/polymidi-go"
	"github.com/cbegin/polymidi-go/internal/voice"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f5"))
	releasingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fa0"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#f55"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444")).Padding(0, 1)
)

const (
	refreshEvery = 50 * time.Millisecond
	arpEvery     = 150 * time.Millisecond
)

var (
	arpNotes = []uint8{48, 55, 60, 64, 67, 72, 76, 79}
	barRunes = []rune(" ▁▂▃▄▅▆▇█")
)

type refreshMsg struct{}

type arpMsg struct{}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg { return refreshMsg{} })
}

func arpTick() tea.Cmd {
	return tea.Tick(arpEvery, func(time.Time) tea.Msg { return arpMsg{} })
}

// model is the monitor UI. With demo set, the UI goroutine is the only
// producer writing to the player input; otherwise a MIDI port is.
type model struct {
	player   *polymidi.Player
	analyzer *analyzer
	source   string
	demo     bool
	arpOn    bool
	arpStep  int
	lastNote uint8
	held     bool
	cutoffCC uint8
	width    int
	snap     snapshot
	bands    []float64
	stats    polymidi.Stats
	quitting bool
}

func newModel(pl *polymidi.Player, a *analyzer, source string, demo bool) model {
	return model{
		player:   pl,
		analyzer: a,
		source:   source,
		demo:     demo,
		arpOn:    demo,
		cutoffCC: 127,
		width:    80,
	}
}

func (m model) Init() tea.Cmd {
	if m.demo {
		return tea.Batch(refresh(), arpTick())
	}
	return refresh()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "+", "=":
			m.player.SetMasterVolume(m.player.MasterVolume() + 0.1)
		case "-", "_":
			m.player.SetMasterVolume(m.player.MasterVolume() - 0.1)
		}
		if m.demo {
			m.demoKey(msg.String())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case refreshMsg:
		var samples []float64
		m.snap, samples = m.analyzer.Snapshot()
		m.bands = smoothBands(m.bands, spectrum(samples, m.analyzer.sampleRate, m.bandCount()))
		m.stats = m.player.Stats()
		return m, refresh()

	case arpMsg:
		if m.arpOn {
			m.arpStep = (m.arpStep + 1) % len(arpNotes)
			m.play(arpNotes[m.arpStep])
		}
		return m, arpTick()
	}
	return m, nil
}

func (m *model) demoKey(key string) {
	in := m.player.Input()
	switch key {
	case " ":
		m.arpOn = !m.arpOn
		if !m.arpOn {
			m.stopHeld()
		}
	case "up":
		m.cutoffCC = min(127, m.cutoffCC+8)
		_, _ = in.Write(gomidi.ControlChange(0, 1, m.cutoffCC))
	case "down":
		m.cutoffCC -= min(m.cutoffCC, 8)
		_, _ = in.Write(gomidi.ControlChange(0, 1, m.cutoffCC))
	case "b":
		_, _ = in.Write(gomidi.Pitchbend(0, 4096))
	case "n":
		_, _ = in.Write(gomidi.Pitchbend(0, 0))
	case "p":
		_, _ = in.Write(gomidi.ControlChange(0, 123, 0))
		m.held = false
	}
}

func (m *model) play(note uint8) {
	m.stopHeld()
	_, _ = m.player.Input().Write(gomidi.NoteOn(0, note, 96))
	m.lastNote, m.held = note, true
}

func (m *model) stopHeld() {
	if m.held {
		_, _ = m.player.Input().Write(gomidi.NoteOff(0, m.lastNote))
		m.held = false
	}
}

func (m model) bandCount() int {
	return max(16, min(96, m.width-6))
}

// smoothBands gives the bars a fast attack and a slow decay.
func smoothBands(prev, next []float64) []float64 {
	if len(prev) != len(next) {
		return next
	}
	for i, v := range next {
		if v > prev[i] {
			prev[i] = prev[i]*0.3 + v*0.7
		} else {
			prev[i] = prev[i]*0.85 + v*0.15
		}
	}
	return prev
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("polymon") + statusStyle.Render("  "+m.source) + "\n\n")

	b.WriteString(panelStyle.Render(m.voicesView()) + "\n")
	b.WriteString(panelStyle.Render(m.paramsView()) + "\n")
	b.WriteString(panelStyle.Render(m.spectrumView()) + "\n")

	st := m.stats
	line := fmt.Sprintf("recv %d  proc %d  steals %d  vol %.1f  bend %.3f",
		st.Received, st.Processed, st.Steals, m.player.MasterVolume(), m.snap.Bend)
	b.WriteString(statusStyle.Render(line))
	if st.Dropped > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  dropped %d", st.Dropped)))
	}
	b.WriteString("\n")

	help := "q quit  +/- volume"
	if m.demo {
		help += "  space arp  up/down cutoff  b/n bend  p panic"
	}
	b.WriteString(dimStyle.Render(help))
	return b.String()
}

func (m model) voicesView() string {
	cells := make([]string, 0, len(m.snap.Voices))
	for i, v := range m.snap.Voices {
		label := fmt.Sprintf("%d:%-4s", i, "-")
		if v.HasNote {
			label = fmt.Sprintf("%d:%-4s", i, noteName(v.Note))
		}
		style := dimStyle
		switch v.State {
		case voice.Active:
			style = activeStyle
		case voice.Releasing:
			style = releasingStyle
		}
		cells = append(cells, style.Render(label+bar(float64(v.Amp), 4)))
	}
	return strings.Join(cells, "  ")
}

func (m model) paramsView() string {
	lines := make([]string, 0, len(m.snap.Params))
	for _, p := range m.snap.Params {
		lines = append(lines, fmt.Sprintf("%-18s %10.2f -> %-10.2f", p.Name, p.Current, p.Target))
	}
	return strings.Join(lines, "\n")
}

func (m model) spectrumView() string {
	const rows = 4
	lines := make([]string, rows)
	for r := 0; r < rows; r++ {
		var sb strings.Builder
		for _, v := range m.bands {
			level := v*rows - float64(rows-1-r)
			idx := int(level * float64(len(barRunes)-1))
			idx = max(0, min(len(barRunes)-1, idx))
			sb.WriteRune(barRunes[idx])
		}
		lines[r] = activeStyle.Render(sb.String())
	}
	return strings.Join(lines, "\n")
}

func bar(v float64, width int) string {
	n := int(v*float64(width) + 0.5)
	n = max(0, min(width, n))
	return strings.Repeat("█", n) + strings.Repeat(" ", width-n)
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func noteName(n uint8) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], int(n)/12-1)
}
