package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"clausewise/internal/domain"
)

// AskPort is the TUI-facing subset of the review service.
type AskPort interface {
	Ask(ctx context.Context, question, sessionID string, k int) ([]domain.RetrievalChunk, error)
}

type mode int

const (
	modeClauses mode = iota
	modeResults
)

// Model browses a reviewed contract's tagged clauses and queries its session index.
type Model struct {
	ctx       context.Context
	service   AskPort
	session   string
	topK      int
	batch     domain.TaggedBatch
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.RetrievalChunk
	mode      mode
	status    string
	clause    int
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a model over a reviewed batch whose index lives in session. Queries run under
// ctx, so cancelling it aborts an in-flight search.
func New(ctx context.Context, service AskPort, batch domain.TaggedBatch, session string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about this contract and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		session:  session,
		topK:     topK,
		batch:    batch,
		input:    ti,
		viewport: vp,
		status:   fmt.Sprintf("%d clauses tagged. Up/Down browse, Tab switches view, Enter asks.", len(batch.Clauses)),
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and subtitle, status, query box, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderBody())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.mode == modeClauses {
				m.mode = modeResults
			} else {
				m.mode = modeClauses
			}
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			res, err := m.service.Ask(m.ctx, q, m.session, m.topK)
			if err != nil {
				m.status = "Error: " + err.Error()
				m.results = nil
			} else {
				m.status = fmt.Sprintf("%d results for %q", len(res), q)
				m.results = res
				m.cursor = 0
				m.lastQuery = q
			}
			m.mode = modeResults
			m.input.SetValue("")
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case "down":
			m.move(1)
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case "up":
			m.move(-1)
			m.viewport.SetContent(m.renderBody())
			return m, nil
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

func (m *Model) move(delta int) {
	switch m.mode {
	case modeClauses:
		if n := len(m.batch.Clauses); n > 0 {
			m.clause = (m.clause + delta + n) % n
		}
	case modeResults:
		if n := len(m.results); n > 0 {
			m.cursor = (m.cursor + delta + n) % n
		}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Clausewise: " + m.batch.Filename)
	sub := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(
		fmt.Sprintf("session %s | %s view", m.session, map[mode]string{modeClauses: "clause", modeResults: "query"}[m.mode]))
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + sub + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderBody() string {
	if m.mode == modeResults {
		return m.renderCurrentResult()
	}
	return m.renderCurrentClause()
}

func (m Model) renderCurrentClause() string {
	if len(m.batch.Clauses) == 0 {
		return "No clauses found in this document."
	}
	c := m.batch.Clauses[m.clause]
	risk := riskStyle(c.RiskScore).Render(fmt.Sprintf("Risk %d", c.RiskScore))
	var b strings.Builder
	fmt.Fprintf(&b, "Clause %d/%d  %s  %s\n\n", m.clause+1, len(m.batch.Clauses), risk,
		strings.ToUpper(strings.Join(c.Categories, ", ")))
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Summary:"), c.Summary)
	b.WriteString(c.Text)
	if c.Suggestion != "" {
		fmt.Fprintf(&b, "\n\n%s\n%s", labelStyle.Render("Suggested redline:"), c.Suggestion)
	}
	return b.String()
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  clause %d  score=%.3f  %s", m.cursor+1, len(m.results),
		r.ClauseIndex+1, r.Score, strings.Join(r.Categories, ", "))
	return title + "\n\n" + highlightBestSentence(r.Content, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func riskStyle(score int) lipgloss.Style {
	switch {
	case score >= 70:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	case score >= 40:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	}
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
