package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/corvidfield/storylet-engine/internal/services"
	"github.com/corvidfield/storylet-engine/pkg/deck"
	"github.com/corvidfield/storylet-engine/pkg/storylet"
)

// ConsoleUI is the BubbleTea model that walks a Deck interactively.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	deck    *deck.Deck
	path    string
	archive *services.TraceArchive

	pileViewport  viewport.Model
	traceViewport viewport.Model

	lastDrawn *storylet.Storylet
	status    string
	trace     []string

	ready  bool
	width  int
	height int
}

var (
	panelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2).
			PaddingRight(1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const helpText = "r reshuffle · d draw · h hand(5) · p play last · a async reshuffle · u step update · R reset · c copy pile · q quit"

func NewConsoleUI(d *deck.Deck, path string, archive *services.TraceArchive) ConsoleUI {
	pileVp := viewport.New(40, 20)
	traceVp := viewport.New(40, 20)

	return ConsoleUI{
		deck:          d,
		path:          path,
		archive:       archive,
		pileViewport:  pileVp,
		traceViewport: traceVp,
		status:        fmt.Sprintf("loaded %s (%d storylets)", path, d.Len()),
	}
}

// archiveTrace forwards the current trace sink to the trace archive,
// keyed by the deck's source path, when one is configured. Failures
// are surfaced in the status line rather than lost, but never replace
// a status already reporting the triggering operation's own failure.
func (m *ConsoleUI) archiveTrace() {
	if m.archive == nil || len(m.trace) == 0 {
		return
	}
	if err := m.archive.Append(context.Background(), m.path, m.trace); err != nil {
		m.status = errorStyle.Render("trace archive append failed: " + err.Error())
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return nil
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		pvCmd tea.Cmd
		tvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		pileWidth := m.width / 2
		traceWidth := m.width - pileWidth

		m.pileViewport.Width = pileWidth - 4
		m.pileViewport.Height = m.height - 6
		m.traceViewport.Width = traceWidth - 4
		m.traceViewport.Height = m.height - 6

		m.ready = true
		m.refreshViewports()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.doReshuffle()
		case "d":
			m.doDraw()
		case "h":
			m.doDrawHand(5)
		case "p":
			m.doPlayLast()
		case "a":
			m.doReshuffleAsync()
		case "u":
			m.doUpdateStep()
		case "R":
			m.doReset()
		case "c":
			m.doCopyPile()
		}
		m.refreshViewports()
	}

	m.pileViewport, pvCmd = m.pileViewport.Update(msg)
	m.traceViewport, tvCmd = m.traceViewport.Update(msg)
	return m, tea.Batch(pvCmd, tvCmd)
}

func (m *ConsoleUI) doReshuffle() {
	m.trace = nil
	if err := m.deck.Reshuffle(nil, &m.trace); err != nil {
		m.status = errorStyle.Render("reshuffle failed: " + err.Error())
		return
	}
	m.status = statusStyle.Render(fmt.Sprintf("reshuffled, pile size %d", m.deck.PileLen()))
	m.archiveTrace()
}

func (m *ConsoleUI) doDraw() {
	s, ok, err := m.deck.Draw()
	if err != nil {
		m.status = errorStyle.Render("draw failed: " + err.Error())
		return
	}
	if !ok {
		m.status = statusStyle.Render("pile is empty; reshuffle first")
		return
	}
	m.lastDrawn = s
	m.status = statusStyle.Render("drew " + s.ID)
}

func (m *ConsoleUI) doDrawHand(count int) {
	m.trace = nil
	hand, err := m.deck.DrawHand(count, true, nil, &m.trace)
	if err != nil {
		m.status = errorStyle.Render("draw hand failed: " + err.Error())
		return
	}
	ids := make([]string, len(hand))
	for i, s := range hand {
		ids[i] = s.ID
	}
	if len(hand) > 0 {
		m.lastDrawn = hand[len(hand)-1]
	}
	m.status = statusStyle.Render("drew hand: " + strings.Join(ids, ", "))
	m.archiveTrace()
}

func (m *ConsoleUI) doPlayLast() {
	if m.lastDrawn == nil {
		m.status = statusStyle.Render("nothing drawn yet")
		return
	}
	if err := m.deck.Play(m.lastDrawn); err != nil {
		m.status = errorStyle.Render("play failed: " + err.Error())
		return
	}
	m.status = statusStyle.Render("played " + m.lastDrawn.ID)
}

func (m *ConsoleUI) doReshuffleAsync() {
	if m.deck.AsyncReshuffleInProgress() {
		m.status = statusStyle.Render("an async reshuffle is already pending")
		return
	}
	m.trace = nil
	// The completion callback is a no-op: bubbletea hands each Update
	// call a fresh copy of the model, so a closure captured here would
	// mutate a stale copy once the chunk finally completes in a later
	// call. doUpdateStep derives the user-visible status itself from
	// the deck's state immediately after stepping.
	err := m.deck.ReshuffleAsync(func(pile []*storylet.Storylet) {}, nil, &m.trace)
	if err != nil {
		m.status = errorStyle.Render("async reshuffle failed: " + err.Error())
		return
	}
	m.status = statusStyle.Render("async reshuffle started; press u to step it")
}

func (m *ConsoleUI) doUpdateStep() {
	if !m.deck.AsyncReshuffleInProgress() {
		m.status = statusStyle.Render("no async reshuffle pending")
		return
	}
	if err := m.deck.Update(); err != nil {
		m.status = errorStyle.Render("update failed: " + err.Error())
		return
	}
	if m.deck.AsyncReshuffleInProgress() {
		m.status = statusStyle.Render("processed a chunk; still pending")
		return
	}
	m.status = statusStyle.Render(fmt.Sprintf("async reshuffle complete, pile size %d", m.deck.PileLen()))
	m.archiveTrace()
}

func (m *ConsoleUI) doReset() {
	m.deck.Reset()
	m.lastDrawn = nil
	m.trace = nil
	m.status = statusStyle.Render("deck reset")
}

func (m *ConsoleUI) doCopyPile() {
	ids, stale := m.deck.DumpDrawPile()
	text := strings.Join(ids, "\n")
	if err := clipboard.WriteAll(text); err != nil {
		m.status = errorStyle.Render("copy failed: " + err.Error())
		return
	}
	if stale {
		m.status = statusStyle.Render("copied pile to clipboard (stale: async reshuffle pending)")
		return
	}
	m.status = statusStyle.Render("copied pile to clipboard")
}

func (m *ConsoleUI) refreshViewports() {
	ids, stale := m.deck.DumpDrawPile()
	var pileText strings.Builder
	if stale {
		pileText.WriteString(errorStyle.Render("(stale — async reshuffle pending)") + "\n\n")
	}
	for i, id := range ids {
		marker := "  "
		if m.lastDrawn != nil && id == m.lastDrawn.ID {
			marker = "> "
		}
		fmt.Fprintf(&pileText, "%s%2d. %s\n", marker, i+1, id)
	}
	m.pileViewport.SetContent(wordwrap.String(pileText.String(), max(m.pileViewport.Width, 10)))

	m.traceViewport.SetContent(wordwrap.String(strings.Join(m.trace, "\n"), max(m.traceViewport.Width, 10)))
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	pilePanel := panelStyle.Width(m.width / 2).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Draw pile"),
			separatorStyle.Render(strings.Repeat("─", m.pileViewport.Width)),
			m.pileViewport.View(),
		),
	)

	tracePanel := panelStyle.Width(m.width - m.width/2).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Trace sink"),
			separatorStyle.Render(strings.Repeat("─", m.traceViewport.Width)),
			m.traceViewport.View(),
		),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, pilePanel, tracePanel)
	footer := "\n" + m.status + "\n" + helpStyle.Render(helpText)
	return body + footer
}
