// Package tui renders a chat panel in the terminal.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

const (
	draftPrompt  = "You> "
	attachPrompt = "Attach file> "
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	recordingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")).Padding(0, 1)
	processingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	noticeStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("13"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle       = lipgloss.NewStyle().Faint(true)
)

// UpdateMsg carries a panel update into the program.
type UpdateMsg panel.Update

// Options customises the terminal panel.
type Options struct {
	Title string
	// Stat resolves a typed attachment path. Defaults to os.Stat.
	Stat func(path string) (os.FileInfo, error)
}

// Model is the bubbletea model of one chat panel.
type Model struct {
	panel   *panel.Controller
	updates chan panel.Update
	done    chan struct{}
	once    *sync.Once
	unsub   func()
	stat    func(string) (os.FileInfo, error)

	input     textinput.Model
	title     string
	snapshot  panel.Snapshot
	notice    *panel.Notice
	attaching bool
	err       error
	width     int
}

// New subscribes a model to p. Call Close when the program ends.
func New(p *panel.Controller, opts Options) Model {
	in := textinput.New()
	in.Placeholder = "Ask about your crops"
	in.Prompt = draftPrompt
	in.CharLimit = 0
	in.Width = 60
	in.Focus()

	updates := make(chan panel.Update, 64)
	unsub := p.Subscribe(func(u panel.Update) {
		select {
		case updates <- u:
		default:
			// The next update carries a newer snapshot anyway.
		}
	})

	title := opts.Title
	if title == "" {
		title = "Farm Assistant"
	}
	stat := opts.Stat
	if stat == nil {
		stat = os.Stat
	}

	return Model{
		panel:    p,
		updates:  updates,
		done:     make(chan struct{}),
		once:     &sync.Once{},
		unsub:    unsub,
		stat:     stat,
		input:    in,
		title:    title,
		snapshot: p.Snapshot(),
	}
}

// Close detaches the model from its panel and releases a pending
// waitForUpdate.
func (m Model) Close() {
	m.once.Do(func() {
		m.unsub()
		close(m.done)
	})
}

func waitForUpdate(ch <-chan panel.Update, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-ch:
			return UpdateMsg(u)
		case <-done:
			return nil
		}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.updates, m.done))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-len(attachPrompt)-2, 10)
		return m, nil

	case UpdateMsg:
		if msg.Snapshot.Version >= m.snapshot.Version {
			m.snapshot = msg.Snapshot
		}
		if msg.Notice != nil {
			m.notice = msg.Notice
		}
		if msg.Snapshot.Closed {
			return m, tea.Quit
		}
		return m, waitForUpdate(m.updates, m.done)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.attaching {
				m.panel.AttachFile(nil)
				m.leaveAttach()
				return m, nil
			}
			return m, tea.Quit
		case "enter":
			if m.attaching {
				m.attach(strings.TrimSpace(m.input.Value()))
				m.leaveAttach()
				return m, nil
			}
			if m.panel.SendText() {
				m.input.SetValue("")
			}
			return m, nil
		case "ctrl+r":
			m.panel.ToggleCapture()
			return m, nil
		case "ctrl+p":
			m.panel.CaptureImage()
			return m, nil
		case "ctrl+o":
			if !m.attaching {
				m.attaching = true
				m.err = nil
				m.input.Prompt = attachPrompt
				m.input.SetValue("")
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if !m.attaching {
		m.panel.SetDraft(m.input.Value())
	}
	return m, cmd
}

// attach resolves a typed path. An empty path is a dismissed picker.
func (m *Model) attach(path string) {
	if path == "" {
		m.panel.AttachFile(nil)
		return
	}
	info, err := m.stat(path)
	if err != nil {
		m.err = fmt.Errorf("cannot attach %s: %w", path, err)
		return
	}
	if info.IsDir() {
		m.err = fmt.Errorf("cannot attach %s: is a directory", path)
		return
	}
	handle := &panel.FileHandle{Name: path, Size: info.Size()}
	if !handle.Accepted() {
		m.err = fmt.Errorf("cannot attach %s: unsupported file type", path)
		return
	}
	m.panel.AttachFile(handle)
}

func (m *Model) leaveAttach() {
	m.attaching = false
	m.input.Prompt = draftPrompt
	m.input.SetValue(m.panel.State().Draft)
	m.input.CursorEnd()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	switch m.snapshot.Phase {
	case panel.PhaseRecording:
		b.WriteString(" " + recordingStyle.Render("● REC"))
	case panel.PhaseProcessing:
		b.WriteString(" " + processingStyle.Render("… processing"))
	}
	b.WriteString("\n\n")

	for _, msg := range m.snapshot.Messages {
		b.WriteString(renderMessage(msg))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.notice != nil {
		b.WriteString(noticeStyle.Render(m.notice.Title + ": " + m.notice.Description))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • ctrl+r record • ctrl+o attach • ctrl+p camera • esc quit"))
	return b.String()
}

func renderMessage(msg chat.Message) string {
	who := assistantStyle.Render("Assistant:")
	if msg.Sender == chat.SenderUser {
		who = userStyle.Render("You:")
	}
	var tag string
	switch msg.Kind {
	case chat.KindVoice:
		tag = "[voice] "
	case chat.KindFile:
		tag = "[file] "
	case chat.KindImage:
		tag = "[image] "
	}
	return fmt.Sprintf("%s %s%s  %s", who, tag, msg.Text, helpStyle.Render(msg.Timestamp.Local().Format("15:04")))
}

// Run drives p in an interactive terminal program until the user quits or
// ctx ends.
func Run(ctx context.Context, p *panel.Controller, opts Options, programOpts ...tea.ProgramOption) error {
	m := New(p, opts)
	defer m.Close()

	programOpts = append([]tea.ProgramOption{tea.WithContext(ctx)}, programOpts...)
	_, err := tea.NewProgram(m, programOpts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
