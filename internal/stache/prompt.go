package stache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"go.followtheprocess.codes/stache/internal/ref"
)

// Prompter asks for the values of references that could not be resolved.
type Prompter interface {
	// Prompt returns a value for each of refs, keyed by reference address.
	Prompt(ctx context.Context, refs []ref.Ref) (map[string]string, error)
}

// FormPrompter is a [Prompter] that presents a terminal form with an input
// per reference.
type FormPrompter struct {
	In  io.Reader // Answers are read from here
	Out io.Writer // The form is drawn here
}

// Prompt implements [Prompter] for a [FormPrompter].
func (f FormPrompter) Prompt(ctx context.Context, refs []ref.Ref) (map[string]string, error) {
	if len(refs) == 0 {
		return map[string]string{}, nil
	}

	values := make([]string, len(refs))
	fields := make([]huh.Field, 0, len(refs))

	for i, r := range refs {
		fields = append(
			fields,
			huh.NewInput().
				Title(r.String()).
				Description("Value for "+r.Placeholder()).
				Value(&values[i]),
		)
	}

	form := huh.NewForm(huh.NewGroup(fields...)).WithInput(f.In).WithOutput(f.Out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, errors.New("prompt cancelled")
		}

		return nil, fmt.Errorf("could not prompt for values: %w", err)
	}

	answers := make(map[string]string, len(refs))
	for i, r := range refs {
		answers[r.String()] = values[i]
	}

	return answers, nil
}
