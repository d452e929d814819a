package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finsight/internal/domain"
	"finsight/internal/service"
	"finsight/internal/textproc"
)

// SessionPort is the TUI-facing subset of the session.
type SessionPort interface {
	Ask(ctx context.Context, question string) (service.Answer, error)
	Status() service.Status
}

// IngestedMsg tells the UI that a new document replaced the current one.
type IngestedMsg struct {
	Name   string
	Result domain.IngestResult
}

type answerMsg struct {
	query  string
	answer service.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	session   SessionPort
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	answer    string
	sources   []domain.RetrievalResult
	title     string
	summary   string
	status    string
	cursor    int // -1 shows the answer, otherwise the selected source
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance for an ingested document.
func New(session SessionPort, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the document and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	st := session.Status()
	return Model{
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		title:    title,
		summary:  st.Summary,
		status:   fmt.Sprintf("Loaded %d pages, %d chunks. Ask a question.", st.TotalPages, st.TotalChunks),
		cursor:   -1,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ans, err := m.session.Ask(context.Background(), q)
		return answerMsg{query: q, answer: ans, err: err}
	}
}

// Update handles key, window and async answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderContent())
		return m, nil
	case answerMsg:
		m.busy = false
		m.sources = msg.answer.Sources
		m.cursor = -1
		m.lastQuery = msg.query
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = ""
		} else {
			m.answer = msg.answer.Text
			m.status = fmt.Sprintf("Answer for %q  (tab: sources, up/down: browse)", msg.query)
		}
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil
	case IngestedMsg:
		m.summary = msg.Result.Summary
		m.title = msg.Name
		m.answer, m.sources, m.cursor = "", nil, -1
		m.status = fmt.Sprintf("Loaded %s: %d pages, %d chunks.", msg.Name, msg.Result.TotalPages, msg.Result.TotalChunks)
		m.viewport.SetContent(m.renderContent())
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			m.status = fmt.Sprintf("Searching for %q", q)
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "tab":
			if len(m.sources) > 0 {
				if m.cursor < 0 {
					m.cursor = 0
				} else {
					m.cursor = -1
				}
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoTop()
			}
			return m, nil
		case "down":
			if m.cursor >= 0 && len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "up":
			if m.cursor >= 0 && len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("FinSight  " + m.title)
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderContent() string {
	if m.cursor < 0 {
		if m.answer == "" {
			return "No answer yet."
		}
		return m.answer
	}
	r := m.sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  page %d, chunk %d  score=%.3f", m.cursor+1, len(m.sources), r.Page, r.ChunkID, r.Score)
	return title + "\n\n" + highlightBestSentence(r.Text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence emphasizes the sentence sharing the most tokens with the query.
func highlightBestSentence(text, query string) string {
	sentences := textproc.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := textproc.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if i == bestIdx && bestScore > 0 {
			out[i] = highlightStyle.Render(s)
		} else {
			out[i] = s
		}
	}
	return strings.Join(out, " ")
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	for t := range textproc.TokenSet(sentence) {
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
