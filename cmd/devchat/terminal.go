package main

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// lineReader is the part of the terminal the client reads from.
// *liner.State implements it; tests feed canned answers.
type lineReader interface {
	Prompt(label string) (string, error)
	PasswordPrompt(label string) (string, error)
	AppendHistory(item string)
}

// terminal is a liner line editor whose history lives next to the config
// file.
type terminal struct {
	*liner.State
	historyPath string
}

func openTerminal(historyPath string) *terminal {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyPath); err == nil {
		if _, err := line.ReadHistory(f); err != nil {
			log.Printf("[devchat] failed to read history: %v", err)
		}
		f.Close()
	}
	return &terminal{State: line, historyPath: historyPath}
}

// Close saves the history and restores the terminal.
func (t *terminal) Close() error {
	if err := t.saveHistory(); err != nil {
		log.Printf("[devchat] failed to save history: %v", err)
	}
	return t.State.Close()
}

func (t *terminal) saveHistory() error {
	if err := os.MkdirAll(filepath.Dir(t.historyPath), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(t.historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = t.WriteHistory(f)
	return err
}

// ask prompts and trims the answer.
func ask(in lineReader, label string) (string, error) {
	answer, err := in.Prompt(label)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// endOfInput reports whether err is the user leaving with Ctrl-C or
// Ctrl-D rather than a terminal failure.
func endOfInput(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted)
}

// readLines prompts with each label received on next and forwards the
// answer. The REPL sends the next label only after handling a line, so the
// prompt always reflects the current view. lines is closed on Ctrl-C,
// Ctrl-D or a terminal error.
func readLines(in lineReader, next <-chan string, lines chan<- string) {
	defer close(lines)
	for label := range next {
		line, err := in.Prompt(label)
		if err != nil {
			if !endOfInput(err) {
				log.Printf("[devchat] read input: %v", err)
			}
			return
		}
		if strings.TrimSpace(line) != "" {
			in.AppendHistory(line)
		}
		lines <- line
	}
}
