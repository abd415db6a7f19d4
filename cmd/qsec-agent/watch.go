package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"qsec/internal/client"
	"qsec/internal/config"
	"qsec/internal/dashboard"
	"qsec/internal/poller"
	"qsec/internal/remediation"
	"qsec/internal/utils"
	"qsec/internal/version"
)

const clearScreen = "\033[H\033[2J"

type keyAction int

const (
	keyNone keyAction = iota
	keyToggle
	keyQuit
)

// keyFor maps a raw keystroke to a watch action.
func keyFor(b byte) keyAction {
	switch b {
	case 'a', 'A':
		return keyToggle
	case 'q', 'Q', 0x03, 0x04:
		return keyQuit
	}
	return keyNone
}

// screen serializes redraws coming from concurrent poll completions.
type screen struct {
	mu    sync.Mutex
	out   io.Writer
	state *dashboard.State
}

func (s *screen) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, clearScreen)
	_ = dashboard.Render(s.out, s.state.Snapshot())
	fmt.Fprintln(s.out, "\n[a] toggle auto-remediation  [q] quit")
}

// crlfWriter turns \n into \r\n so output lines up while the terminal is raw.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

func runWatch(ctx context.Context, cfg *config.Config, api *client.Client, out io.Writer) error {
	logger := utils.NewLogger(cfg.Paths.AgentLogFile())
	defer logger.Close()
	logger.Writef("Agent %s watching %s (instance %s)", version.String(), cfg.APIURL, api.InstanceID())

	trigger := remediation.NewTrigger(&remediation.Arm{}, nil, api, logger)
	trigger.Dedupe = cfg.DedupeRemediation
	state := dashboard.NewState(trigger.Arm())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		prev, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		defer term.Restore(fd, prev)
		out = crlfWriter{w: out}
	}
	scr := &screen{out: out, state: state}

	p := poller.New(api, state, trigger, cfg.PollInterval(), cfg.RequestTimeout(), logger)
	p.OnUpdate = scr.draw
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()
	scr.draw()

	go readKeys(os.Stdin, func(action keyAction) {
		switch action {
		case keyToggle:
			logger.Writef("Auto-remediation %s", trigger.Arm().Toggle())
			scr.draw()
		case keyQuit:
			cancel()
		}
	})

	<-ctx.Done()
	p.Stop()
	p.Wait()
	c := p.Counters()
	logger.Writef("Agent stopped after %d ticks (%d failures, %d stale, %d remediations)", c.Ticks, c.Failures, c.Discarded, trigger.Fired())
	return nil
}

func readKeys(r io.Reader, handle func(keyAction)) {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if action := keyFor(b); action != keyNone {
			handle(action)
		}
	}
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	text, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
