package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mrdg/keybed/dub"
)

func (a *app) eval(input string) (string, error) {
	command, err := dub.Parse(input)
	if err != nil {
		return "", err
	}
	name := string(command.Name)
	if name == "" {
		return "", nil
	}
	for _, cmd := range commands {
		if name != cmd.name {
			continue
		}
		if err := checkArity(cmd, len(command.Args)); err != nil {
			return "", err
		}
		result, err := cmd.run(a, command.Args)
		if err != nil {
			return result, fmt.Errorf("%s error: %w", cmd.name, err)
		}
		return result, nil
	}
	return "", fmt.Errorf("unknown command: %s", name)
}

func checkArity(cmd command, n int) error {
	if cmd.arity < 0 {
		arity := -cmd.arity
		if n < arity {
			return fmt.Errorf("%s: wrong number of arguments: need at least %v, got %v",
				cmd.name, arity, n)
		}
		return nil
	}
	if n < cmd.arity || n > cmd.arity+cmd.optional {
		if cmd.optional == 0 {
			return fmt.Errorf("%s: wrong number of arguments: want %v, got %v",
				cmd.name, cmd.arity, n)
		}
		return fmt.Errorf("%s: wrong number of arguments: want %v to %v, got %v",
			cmd.name, cmd.arity, cmd.arity+cmd.optional, n)
	}
	return nil
}

func repl(a *app) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "> ",
		AutoComplete: completer(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return io.EOF
		}
		if err != nil {
			fmt.Fprintln(a.out, err)
			continue
		}
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if strings.TrimSpace(line) == "quit" {
			return nil
		}
		result, err := a.eval(line)
		if err != nil {
			fmt.Fprintln(a.out, err)
		} else if result != "" {
			fmt.Fprintln(a.out, result)
		}
	}
}

func completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range commands {
		items = append(items, readline.PcItem(cmd.name))
	}
	items = append(items, readline.PcItem("quit"))
	return readline.NewPrefixCompleter(items...)
}
