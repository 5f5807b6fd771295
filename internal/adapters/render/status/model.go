package status

import (
	"errors"
	"io"
	"time"

	"github.com/bnema/relayd/internal/application"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type inventoryLoadedMsg struct {
	inventory inventory
}

type row struct {
	record application.SessionRecord
	stale  bool
}

// inventory is the ledger as the view sees it: rows in ledger order plus
// the counts shown in the header.
type inventory struct {
	rows   []row
	paired int
	stale  int
}

func summarize(records []application.SessionRecord, opts RenderOptions) inventory {
	inv := inventory{rows: make([]row, 0, len(records))}
	for _, record := range records {
		r := row{record: record, stale: isStale(record.Credentials.UpdatedAt, opts)}
		if record.Credentials.Paired {
			inv.paired++
		}
		if r.stale {
			inv.stale++
		}
		inv.rows = append(inv.rows, r)
	}
	return inv
}

func isStale(updatedAt time.Time, opts RenderOptions) bool {
	if updatedAt.IsZero() || opts.Now.IsZero() || opts.StaleAfter <= 0 {
		return false
	}
	return opts.Now.Sub(updatedAt) > opts.StaleAfter
}

type model struct {
	records []application.SessionRecord
	opts    RenderOptions
	styles  styles
	output  string
}

func newModel(records []application.SessionRecord, opts RenderOptions) model {
	return model{records: records, opts: opts, styles: newStyles()}
}

func (m model) Init() tea.Cmd {
	records, opts := m.records, m.opts
	return func() tea.Msg {
		return inventoryLoadedMsg{inventory: summarize(records, opts)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(inventoryLoadedMsg); ok {
		m.output = renderView(msg.inventory, m.opts, m.styles)
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	return m.output
}

// Render draws the session inventory once and returns it as a string.
func Render(records []application.SessionRecord, opts RenderOptions) (string, error) {
	p := tea.NewProgram(newModel(records, opts), tea.WithInput(nil), tea.WithOutput(io.Discard))

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
