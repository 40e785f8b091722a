// Command hmmsim-dashboard is a terminal UI that polls a running
// hmmsim's internal/statsserver endpoint and renders live migration and
// occupancy counters.
package main

import (
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	http3 "github.com/quic-go/quic-go/http3"

	"github.com/hmmsim/hmmsim/internal/stats"
)

var (
	addr            = flag.String("addr", "127.0.0.1:4443", "hmmsim statsserver address")
	refreshInterval = flag.Duration("interval", 2*time.Second, "poll interval")
)

func main() {
	flag.Parse()

	cli := &http.Client{
		Transport: &http3.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}},
		Timeout:   3 * time.Second,
	}

	p := tea.NewProgram(newModel(cli, *addr, *refreshInterval))
	if _, err := p.Run(); err != nil {
		log.Fatalf("hmmsim-dashboard: %v", err)
	}
}

type snapshotMsg struct {
	snap stats.Snapshot
	err  error
}

type tickMsg time.Time

type model struct {
	cli      *http.Client
	addr     string
	interval time.Duration

	snap    stats.Snapshot
	haveOne bool
	err     error
	width   int

	perPid table.Model
}

func newModel(cli *http.Client, addr string, interval time.Duration) model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "pid", Width: 6},
			{Title: "dram bytes", Width: 12},
			{Title: "pcm bytes", Width: 12},
			{Title: "dram migr", Width: 10},
			{Title: "pcm migr", Width: 10},
		}),
		table.WithFocused(false),
		table.WithHeight(1),
	)
	return model{cli: cli, addr: addr, interval: interval, width: 80, perPid: t}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchSnapshot(m.cli, m.addr), tickCmd(m.interval))
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func fetchSnapshot(cli *http.Client, addr string) tea.Cmd {
	return func() tea.Msg {
		resp, err := cli.Get("https://" + addr + "/snapshot")
		if err != nil {
			return snapshotMsg{err: err}
		}
		defer resp.Body.Close()
		var snap stats.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{snap: snap}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, tea.Batch(fetchSnapshot(m.cli, m.addr), tickCmd(m.interval))
	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.snap = msg.snap
		m.haveOne = true
		m.err = nil
		m.perPid.SetRows(perPidRows(msg.snap))
		m.perPid.SetHeight(len(m.perPid.Rows()) + 1)
		return m, nil
	}
	return m, nil
}

// perPidRows flattens a snapshot's four per-pid maps into one row per
// pid, sorted for a stable display order across polls.
func perPidRows(s stats.Snapshot) []table.Row {
	pids := make(map[int]struct{})
	for pid := range s.DramMemorySizeUsedPerPid {
		pids[pid] = struct{}{}
	}
	for pid := range s.PcmMemorySizeUsedPerPid {
		pids[pid] = struct{}{}
	}
	sorted := make([]int, 0, len(pids))
	for pid := range pids {
		sorted = append(sorted, pid)
	}
	sort.Ints(sorted)

	rows := make([]table.Row, 0, len(sorted))
	for _, pid := range sorted {
		rows = append(rows, table.Row{
			strconv.Itoa(pid),
			strconv.FormatUint(s.DramMemorySizeUsedPerPid[pid], 10),
			strconv.FormatUint(s.PcmMemorySizeUsedPerPid[pid], 10),
			strconv.FormatUint(s.DramMigrationsPerPid[pid], 10),
			strconv.FormatUint(s.PcmMigrationsPerPid[pid], 10),
		})
	}
	return rows
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("hmmsim") + dimStyle.Render(" — "+m.addr) + "\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("poll failed: "+m.err.Error()) + "\n")
	}
	if !m.haveOne {
		b.WriteString(dimStyle.Render("waiting for first snapshot...") + "\n")
		b.WriteString(dimStyle.Render("\n(q to quit)\n"))
		return b.String()
	}

	s := m.snap
	b.WriteString(renderBar("dram used", footprintPercent(s.DramMemorySizeUsedPerPid, s.DramMemorySizeInitial), m.width) + "\n")
	b.WriteString(renderBar("pcm used ", footprintPercent(s.PcmMemorySizeUsedPerPid, s.PcmMemorySizeInitial), m.width) + "\n\n")

	b.WriteString(fmt.Sprintf("full migrations    dram=%-6d pcm=%-6d\n", s.FullMigrations.Dram, s.FullMigrations.Pcm))
	b.WriteString(fmt.Sprintf("partial migrations dram=%-6d pcm=%-6d\n", s.PartialMigrations.Dram, s.PartialMigrations.Pcm))
	b.WriteString(fmt.Sprintf("flushed blocks     clean=%-6d dirty=%-6d\n", s.CleanFlushedBlocks, s.DirtyFlushedBlocks))
	b.WriteString(fmt.Sprintf("tag changes        %d\n", s.TagChanges))
	b.WriteString(fmt.Sprintf("idle cycles        %d\n", s.IdleTime))
	b.WriteString(fmt.Sprintf("avg table entries  %.2f\n", s.AvgMigrationEntries()))

	if len(m.perPid.Rows()) > 0 {
		b.WriteString("\n" + dimStyle.Render("per-pid footprint") + "\n")
		b.WriteString(m.perPid.View() + "\n")
	}

	b.WriteString(dimStyle.Render("\n(q to quit)\n"))
	return b.String()
}

func footprintPercent(perPid map[int]uint64, initial uint64) float64 {
	if initial == 0 {
		return 0
	}
	var used uint64
	for _, v := range perPid {
		used += v
	}
	pct := float64(used) / float64(initial) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// renderBar draws a labeled occupancy bar, colored by fill level.
func renderBar(label string, percent float64, width int) string {
	barWidth := width - len(label) - 12
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int((percent / 100.0) * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	style := okStyle
	if percent >= 90 {
		style = errorStyle
	} else if percent >= 75 {
		style = warnStyle
	}
	bar := style.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("%s [%s] %5.1f%%", label, bar, percent)
}
