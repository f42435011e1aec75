package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"

	"github.com/hmmjournal/hmm/pkg/cli"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem("NEXT"),
	readline.PcItem("PREV"),
	readline.PcItem("HEAD"),
	readline.PcItem("END"),
	readline.PcItem("SEEK"),
	readline.PcItem("AT"),
	readline.PcItem("RANDOM"),
	readline.PcItem("FIND",
		readline.PcItem("FIRST"),
		readline.PcItem("LAST"),
		readline.PcItem("UPTO"),
	),
	readline.PcItem("RANGE"),
	readline.PcItem("GREP"),
	readline.PcItem("POS"),
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "hmmsh - browse an hmm file interactively\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: hmmsh [options] [journal_path]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nType .help at the prompt for commands.\n")
	}
	configPath := flag.String("config", "", "Path to the config file")
	tmpl := flag.String("format", "", "Template used to print each entry")
	flag.Parse()

	env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fail(err)
	}
	defer env.Close()

	formatter, err := env.Formatter(*tmpl, os.Stdout)
	if err != nil {
		cli.Fail(err)
	}

	sh := &shell{
		out:       os.Stdout,
		formatter: formatter,
		logger:    env.Logger,
		stats:     env.Stats,
		tel:       env.Telemetry,
	}
	defer sh.close()

	path := env.Config.Path
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if err := sh.open(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening journal: %s\n", err)
	}

	fmt.Println("Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".hmmsh_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sh.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		return
	}
	defer rl.Close()

	for {
		rl.SetPrompt(sh.prompt())

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		quit, err := sh.execute(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		if quit {
			break
		}
	}
}
