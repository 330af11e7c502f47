// Package prompt wraps interactive terminal forms.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rbright/speechcraft/internal/scenario"
)

// ErrNotInteractive is returned when a prompt needs a terminal and stdin is not one.
var ErrNotInteractive = errors.New("stdin is not a terminal")

// Prompter runs forms against one input/output pair.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// New builds a prompter. Forms only run when in is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// Interactive reports whether in is a terminal.
func (p *Prompter) Interactive() bool {
	return IsTerminal(p.in)
}

// IsTerminal reports whether r is an *os.File attached to a terminal.
func IsTerminal(r any) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SelectScenario asks the user to choose one scenario.
func (p *Prompter) SelectScenario(list []scenario.Scenario) (scenario.Scenario, error) {
	if len(list) == 0 {
		return scenario.Scenario{}, errors.New("no scenarios available")
	}
	if !p.Interactive() {
		return scenario.Scenario{}, ErrNotInteractive
	}

	options := make([]huh.Option[string], 0, len(list))
	for _, s := range list {
		options = append(options, huh.NewOption(fmt.Sprintf("%s · %s", s.Title, s.Mode), s.ID))
	}

	selected := list[0].ID
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose a scenario").
				Options(options...).
				Value(&selected),
		),
	).WithInput(p.in).WithOutput(p.out).Run()
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("scenario prompt: %w", err)
	}

	s, ok := scenario.Lookup(selected)
	if !ok {
		return scenario.Scenario{}, fmt.Errorf("unknown scenario %q", selected)
	}
	return s, nil
}

// Token asks for the SiliconFlow API token without echoing it.
func (p *Prompter) Token() (string, error) {
	if !p.Interactive() {
		return "", ErrNotInteractive
	}

	var token string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SiliconFlow API Token").
				Description("Stored locally and used for transcription and feedback.").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
		),
	).WithInput(p.in).WithOutput(p.out).Run()
	if err != nil {
		return "", fmt.Errorf("token prompt: %w", err)
	}
	return strings.TrimSpace(token), nil
}

// Confirm asks a yes/no question. Non-interactive input returns fallback.
func (p *Prompter) Confirm(question string, fallback bool) bool {
	if !p.Interactive() {
		return fallback
	}

	confirmed := fallback
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	).WithInput(p.in).WithOutput(p.out).Run()
	if err != nil {
		return fallback
	}
	return confirmed
}
