package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xupit3r/slm/internal/inference"
	"github.com/xupit3r/slm/internal/llm"
	"github.com/xupit3r/slm/internal/tokenizer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7B68EE")).
			MarginBottom(1)

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4FF"))

	generatedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7FFF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Italic(true)
)

const title = "slm interactive - enter a prompt, 'exit' to quit"

// Streamer starts a streamed generation
type Streamer interface {
	GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan inference.Step, error)
}

// DoneFunc observes each finished generation
type DoneFunc func(prompt string, opts llm.GenerateOptions, step inference.Step, elapsed time.Duration)

// GenerateModel is an interactive prompt loop that streams completions
type GenerateModel struct {
	viewport viewport.Model
	textarea textarea.Model
	gen      Streamer
	opts     llm.GenerateOptions
	mode     string
	onDone   DoneFunc

	entries    []string
	current    *strings.Builder
	prompt     string
	stream     <-chan inference.Step
	cancel     context.CancelFunc
	started    time.Time
	generating bool
	err        error
	width      int
	height     int
	ready      bool
}

type stepMsg struct {
	step inference.Step
}

type streamClosedMsg struct{}

type streamStartedMsg struct {
	stream <-chan inference.Step
	cancel context.CancelFunc
}

type streamErrorMsg struct {
	err error
}

// NewGenerateModel creates the interactive model. mode labels the status
// line; onDone may be nil.
func NewGenerateModel(gen Streamer, opts llm.GenerateOptions, mode string, onDone DoneFunc) GenerateModel {
	ta := textarea.New()
	ta.Placeholder = "Type a prompt..."
	ta.Focus()
	ta.Prompt = "❯ "
	ta.CharLimit = 4000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent(titleStyle.Render(title))

	return GenerateModel{
		viewport: vp,
		textarea: ta,
		gen:      gen,
		opts:     opts,
		mode:     mode,
		onDone:   onDone,
	}
}

func (m GenerateModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m GenerateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-8)
			m.textarea.SetWidth(msg.Width - 4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 8
			m.textarea.SetWidth(msg.Width - 4)
		}
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.stop()
			return m, tea.Quit

		case tea.KeyEsc:
			// Abandon the running generation
			m.stop()
			return m, nil

		case tea.KeyCtrlD:
			if m.generating {
				return m, nil
			}
			m.entries = nil
			m.viewport.SetContent(titleStyle.Render(title))
			return m, nil

		case tea.KeyEnter:
			if m.generating {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			if strings.EqualFold(input, "exit") {
				return m, tea.Quit
			}
			if strings.HasPrefix(input, "/") {
				m.runCommand(input)
				m.updateViewport()
				return m, nil
			}

			m.generating = true
			m.prompt = input
			m.started = time.Now()
			m.current = &strings.Builder{}
			m.entries = append(m.entries, promptStyle.Render("Prompt: ")+input, "")
			m.updateViewport()

			return m, m.startStream(input)
		}

	case streamStartedMsg:
		m.stream = msg.stream
		m.cancel = msg.cancel
		return m, waitForStep(m.stream)

	case stepMsg:
		if msg.step.Done {
			m.finish(msg.step)
			return m, nil
		}
		if msg.step.Token == tokenizer.EndID {
			return m, waitForStep(m.stream)
		}
		if m.current.Len() > 0 {
			m.current.WriteString(" ")
		}
		m.current.WriteString(msg.step.Word)
		m.entries[len(m.entries)-1] = generatedStyle.Render("Generated: ") + m.current.String()
		m.updateViewport()
		return m, waitForStep(m.stream)

	case streamClosedMsg:
		// Channel closed without a final step (cancelled)
		m.generating = false
		m.stream = nil
		m.updateViewport()
		return m, nil

	case streamErrorMsg:
		m.err = msg.err
		m.generating = false
		m.entries = append(m.entries, errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)))
		m.updateViewport()
		return m, nil
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m GenerateModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var sb strings.Builder

	sb.WriteString(statusStyle.Render(m.status()))
	sb.WriteString("\n\n")

	// Viewport with generations
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n\n")

	if m.generating {
		sb.WriteString(helpStyle.Render("⏳ Generating... (Esc to stop)"))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.textarea.View())
	sb.WriteString("\n")

	sb.WriteString(helpStyle.Render("Ctrl+C: Exit | Ctrl+D: Clear | Enter: Generate | /temp /topp /len /seed"))

	return sb.String()
}

func (m GenerateModel) status() string {
	seed := "random"
	if m.opts.Seed >= 0 {
		seed = strconv.FormatInt(m.opts.Seed, 10)
	}
	return fmt.Sprintf("mode: %s | temperature: %.2f | top_p: %.2f | max_length: %d | seed: %s",
		m.mode, m.opts.Temperature, m.opts.TopP, m.opts.MaxTokens, seed)
}

// runCommand applies a /setting value command to the generation options
func (m *GenerateModel) runCommand(input string) {
	fields := strings.Fields(input)
	if len(fields) != 2 {
		m.entries = append(m.entries, errorStyle.Render("usage: /temp|/topp|/len|/seed <value>"))
		return
	}

	opts := m.opts
	var err error
	switch fields[0] {
	case "/temp":
		opts.Temperature, err = strconv.ParseFloat(fields[1], 64)
	case "/topp":
		opts.TopP, err = strconv.ParseFloat(fields[1], 64)
		if err == nil && (opts.TopP <= 0 || opts.TopP > 1) {
			err = fmt.Errorf("top_p must be in (0, 1]")
		}
	case "/len":
		opts.MaxTokens, err = strconv.Atoi(fields[1])
		if err == nil && opts.MaxTokens < 0 {
			err = fmt.Errorf("max_length must not be negative")
		}
	case "/seed":
		opts.Seed, err = strconv.ParseInt(fields[1], 10, 64)
	default:
		err = fmt.Errorf("unknown command %s", fields[0])
	}

	if err != nil {
		m.entries = append(m.entries, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		return
	}
	m.opts = opts
	m.entries = append(m.entries, statusStyle.Render("updated "+m.status()))
}

func (m *GenerateModel) startStream(prompt string) tea.Cmd {
	gen, opts := m.gen, m.opts
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := gen.GenerateStream(ctx, prompt, opts)
		if err != nil {
			cancel()
			return streamErrorMsg{err: err}
		}
		return streamStartedMsg{stream: stream, cancel: cancel}
	}
}

// waitForStep reads the next step from the stream
func waitForStep(stream <-chan inference.Step) tea.Cmd {
	return func() tea.Msg {
		step, ok := <-stream
		if !ok {
			return streamClosedMsg{}
		}
		return stepMsg{step: step}
	}
}

func (m *GenerateModel) finish(step inference.Step) {
	elapsed := time.Since(m.started)
	m.generating = false
	m.stream = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	if errors.Is(step.Err, context.Canceled) {
		m.entries = append(m.entries, helpStyle.Render("stopped: cancelled"))
	} else if step.Err != nil {
		m.err = step.Err
		m.entries = append(m.entries, errorStyle.Render(fmt.Sprintf("Error: %v", step.Err)))
	} else {
		m.entries = append(m.entries, helpStyle.Render(fmt.Sprintf("stopped: %s after %d steps in %s",
			step.Reason, step.Result.Steps, elapsed.Round(time.Millisecond))))
	}

	if m.onDone != nil && step.Result != nil {
		m.onDone(m.prompt, m.opts, step, elapsed)
	}
	m.updateViewport()
}

func (m *GenerateModel) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *GenerateModel) updateViewport() {
	content := strings.Join(m.entries, "\n")
	if content == "" {
		content = titleStyle.Render(title)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}
