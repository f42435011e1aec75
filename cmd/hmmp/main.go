package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/hmmjournal/hmm/pkg/cli"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/format"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "hmmp - pipe hmm entries to this command to format them\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: tail -n 5 ~/.hmm | hmmp [options]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "", "Path to the config file")
	tmpl := flag.String("format", "", "Template used to print each entry")
	flag.Parse()

	env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fail(err)
	}

	text := *tmpl
	if text == "" && env.Config.Format == "" {
		// One entry per println, so the default template's trailing blank
		// line is dropped.
		text = strings.TrimSuffix(format.DefaultTemplate, "\n")
	}
	formatter, err := env.Formatter(text, os.Stdout)
	if err != nil {
		cli.Fail(err)
	}

	err = pipe(os.Stdin, os.Stdout, formatter)
	env.Close()
	if err != nil && !errors.Is(err, syscall.EPIPE) {
		cli.Fail(err)
	}
}

func pipe(in io.Reader, out io.Writer, formatter *format.Formatter) error {
	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		e, err := entry.Decode(scanner.Bytes())
		if err != nil {
			w.Flush()
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := formatter.Fprintln(w, e); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	return w.Flush()
}
