package ui

import (
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
)

// ErrCancelled is returned when the user interrupts a prompt.
var ErrCancelled = errors.New("cancelled")

// Prompter asks questions on a terminal. Zero values use stdin and stdout.
type Prompter struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// AskText prompts for text input, offering def as the default answer.
func (p Prompter) AskText(prompt, def string, validate func(string) error) (string, error) {
	q := promptui.Prompt{
		Label:     prompt,
		Default:   def,
		AllowEdit: true,
		Validate:  validate,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}
	value, err := q.Run()
	if err != nil {
		return "", cancelled(err)
	}
	return value, nil
}

// AskConfirm prompts for yes/no confirmation
func (p Prompter) AskConfirm(prompt string, defaultYes bool) (bool, error) {
	def := "n"
	if defaultYes {
		def = "y"
	}
	q := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
		Default:   def,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}
	_, err := q.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	default:
		return false, cancelled(err)
	}
}

// AskSelect prompts for single selection
func (p Prompter) AskSelect(prompt string, choices []string) (int, string, error) {
	q := promptui.Select{
		Label:  prompt,
		Items:  choices,
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}
	i, value, err := q.Run()
	if err != nil {
		return -1, "", cancelled(err)
	}
	return i, value, nil
}

func cancelled(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrCancelled
	}
	return fmt.Errorf("prompt failed: %w", err)
}
