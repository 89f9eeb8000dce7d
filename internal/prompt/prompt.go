// Package prompt asks the operator yes/no questions during a provisioning run.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/runvoy/keyforge/internal/retry"
)

// Confirmer answers a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, title, description string) (bool, error)
}

// Static always gives the same answer. Used when stdin is not a terminal or
// when the operator passed --yes.
type Static struct {
	Answer bool
}

// Confirm implements Confirmer.
func (s Static) Confirm(ctx context.Context, _, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Answer, nil
}

// Interactive renders a huh confirm form on the terminal.
type Interactive struct {
	Affirmative string
	Negative    string
}

// Confirm implements Confirmer. Escaping the form is reported as an operator
// interrupt.
func (i Interactive) Confirm(ctx context.Context, title, description string) (bool, error) {
	affirmative, negative := i.Affirmative, i.Negative
	if affirmative == "" {
		affirmative = "Yes"
	}
	if negative == "" {
		negative = "No"
	}

	var answer bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative(affirmative).
				Negative(negative).
				Value(&answer),
		),
	).RunWithContext(ctx)

	if errors.Is(err, huh.ErrUserAborted) {
		return false, fmt.Errorf("confirm %q: %w", title, retry.ErrInterrupted)
	}
	if err != nil {
		return false, fmt.Errorf("confirm %q: %w", title, err)
	}

	return answer, nil
}

// New picks an interactive confirmer when stdin and stdout are terminals and
// assumeYes is false; otherwise every question is answered with assumeYes.
func New(assumeYes bool) Confirmer {
	if assumeYes || !IsInteractive() {
		return Static{Answer: assumeYes}
	}
	return Interactive{}
}

// IsInteractive reports whether both stdin and stdout are attached to a terminal.
func IsInteractive() bool {
	return isTTY(os.Stdin) && isTTY(os.Stdout)
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
