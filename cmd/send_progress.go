package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/relayd/internal/adapters/httpapi"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	sendPendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	sendOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sendFailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type sendFunc func(context.Context, httpapi.SendMessageRequest) (httpapi.SendMessageResponse, error)

type messageSentMsg struct {
	receipt httpapi.SendMessageResponse
	err     error
	elapsed time.Duration
}

// sendProgressModel shows the pending relay and ends on a one-line outcome.
type sendProgressModel struct {
	spinner spinner.Model
	req     httpapi.SendMessageRequest
	send    tea.Cmd

	result *messageSentMsg
}

func newSendProgressModel(req httpapi.SendMessageRequest, send tea.Cmd) sendProgressModel {
	return sendProgressModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(sendPendingStyle)),
		req:     req,
		send:    send,
	}
}

func (m sendProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.send)
}

func (m sendProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.result != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case messageSentMsg:
		m.result = &msg
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m sendProgressModel) View() string {
	if m.result == nil {
		return fmt.Sprintf("%s Sending to %s via %s...", m.spinner.View(), m.req.Target, senderLabel(m.req.Sender))
	}

	elapsed := m.result.elapsed.Round(time.Millisecond)
	if m.result.err != nil {
		return sendFailStyle.Render(fmt.Sprintf("✗ not sent after %s", elapsed)) + "\n"
	}
	return sendOKStyle.Render(fmt.Sprintf("✓ accepted by %s in %s", m.result.receipt.Sender, elapsed)) + "\n"
}

func senderLabel(sender string) string {
	if sender == "" {
		return "first registered session"
	}
	return sender
}

// runSendProgress relays req through send while rendering progress on output.
func runSendProgress(ctx context.Context, output io.Writer, req httpapi.SendMessageRequest, send sendFunc) (httpapi.SendMessageResponse, error) {
	sendCmd := func() tea.Msg {
		started := time.Now()
		receipt, err := send(ctx, req)
		return messageSentMsg{receipt: receipt, err: err, elapsed: time.Since(started)}
	}

	p := tea.NewProgram(
		newSendProgressModel(req, sendCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return httpapi.SendMessageResponse{}, err
	}

	result, ok := finalModel.(sendProgressModel)
	if !ok {
		return httpapi.SendMessageResponse{}, fmt.Errorf("unexpected final send model type %T", finalModel)
	}
	if result.result == nil {
		if err := ctx.Err(); err != nil {
			return httpapi.SendMessageResponse{}, err
		}
		return httpapi.SendMessageResponse{}, errors.New("send interrupted")
	}

	return result.result.receipt, result.result.err
}
