package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/bjarneo/dropchat/internal/config"
	"github.com/bjarneo/dropchat/internal/network"
	"github.com/bjarneo/dropchat/internal/util"
)

// Options configures the interactive client.
type Options struct {
	Config config.Config
	// Identity skips the prompt when set.
	Identity string
	Cache    *config.IdentityCache
	Logger   zerolog.Logger
}

// InitialModel asks for the identity to join with.
type InitialModel struct {
	program       *tea.Program
	opts          Options
	identityInput textinput.Model
}

func NewInitialModel(opts Options) *InitialModel {
	input := textinput.New()
	input.Placeholder = "Your name (Enter for a random one)"
	input.CharLimit = util.MaxIdentityLen
	input.Focus()

	if opts.Cache != nil {
		cached, err := opts.Cache.Load()
		if err != nil {
			opts.Logger.Warn().Err(err).Msg("[ui] identity cache unreadable")
		}
		input.SetValue(cached)
	}

	return &InitialModel{opts: opts, identityInput: input}
}

func (m *InitialModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *InitialModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.join(m.identityInput.Value())
		}
	}

	var cmd tea.Cmd
	m.identityInput, cmd = m.identityInput.Update(msg)
	return m, cmd
}

func (m *InitialModel) join(input string) (tea.Model, tea.Cmd) {
	identity := util.NormalizeIdentity(input)
	if identity == "" {
		identity = util.RandomIdentity()
	}
	main := newMainModel(m.opts, identity, &programMessageSender{program: m.program})
	return main, main.Init()
}

func newMainModel(opts Options, identity string, sender *programMessageSender) *Model {
	if opts.Cache != nil {
		if err := opts.Cache.Save(identity); err != nil {
			opts.Logger.Warn().Err(err).Msg("[ui] identity cache not saved")
		}
	}

	cfg := opts.Config
	ch := network.NewChannel(network.Config{
		URL:              cfg.ServerURL,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		PingInterval:     cfg.PingInterval,
		ReadLimit:        network.ReadLimitFor(cfg.MaxFileSize()),
	}, sender, opts.Logger)
	return NewModel(cfg, identity, ch, opts.Logger)
}

func (m *InitialModel) View() string {
	return fmt.Sprintf(
		"Connecting to %s\n\nEnter your name:\n%s\n\n(esc to quit)",
		m.opts.Config.ServerURL,
		m.identityInput.View(),
	)
}

func (m *InitialModel) SetProgram(p *tea.Program) {
	m.program = p
}

// Run starts the interactive client and blocks until it exits. With an
// identity in opts the prompt is skipped.
func Run(opts Options) error {
	if identity := util.NormalizeIdentity(opts.Identity); identity != "" {
		sender := &programMessageSender{}
		main := newMainModel(opts, identity, sender)
		p := tea.NewProgram(main, tea.WithAltScreen())
		sender.program = p
		return runProgram(p)
	}

	initial := NewInitialModel(opts)
	p := tea.NewProgram(initial, tea.WithAltScreen())
	initial.SetProgram(p)
	return runProgram(p)
}

func runProgram(p *tea.Program) error {
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
