package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hmmjournal/hmm/pkg/archive"
	"github.com/hmmjournal/hmm/pkg/cli"
	"github.com/hmmjournal/hmm/pkg/config"
	"github.com/hmmjournal/hmm/pkg/journal"
	"golang.org/x/term"
)

var errEditorFailed = errors.New("something went wrong composing entry, please try again")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "hmm - command line note taking\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: hmm [options] [message...]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "The message is the arguments joined by spaces. With no arguments the\n")
		fmt.Fprintf(flag.CommandLine.Output(), "message is read from stdin when it is not a terminal, or composed in $EDITOR.\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "", "Path to the config file")
	path := flag.String("path", "", "Path to the journal, overriding the config")
	export := flag.String("export", "", "Write a compressed copy of the journal to this file instead of adding an entry")
	flag.Parse()

	env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fail(err)
	}
	defer env.Close()

	if *path != "" {
		env.Config.Update(func(c *config.Config) { c.Path = *path })
	}

	if err := run(env, *export, flag.Args()); err != nil {
		env.Close()
		cli.Fail(err)
	}
}

func run(env *cli.Env, export string, args []string) error {
	ctx := context.Background()

	j, err := journal.Open(env.Config.Path,
		journal.WithSync(env.Config.SyncWrites),
		journal.WithLogger(env.Logger),
		journal.WithCollector(env.Stats),
		journal.WithTelemetry(env.Telemetry),
	)
	if err != nil {
		return err
	}
	defer j.Close()

	if export != "" {
		return exportTo(ctx, env, j, export)
	}

	msg := strings.Join(args, " ")
	if msg == "" {
		if msg, err = compose(env.Config.Editor); err != nil {
			return err
		}
	}

	e, err := j.Append(ctx, msg)
	if err != nil {
		return err
	}
	env.Logger.Debug("wrote entry %s at %s", e.ID(), e.Timestamp())
	return nil
}

// exportTo snapshots the journal into dst. The codec comes from dst's
// extension, falling back to the configured archive format.
func exportTo(ctx context.Context, env *cli.Env, j *journal.Journal, dst string) error {
	codec, err := archive.ParseCodec(strings.TrimPrefix(filepath.Ext(dst), "."))
	if err != nil || codec == archive.CodecNone {
		if codec, err = archive.ParseCodec(env.Config.ArchiveFormat); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := j.Snapshot(ctx, f, codec); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

// compose reads the message from a non-terminal stdin, or opens editor on a
// temporary file and returns what was saved.
func compose(editor string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	f, err := os.CreateTemp("", "hmm-*.txt")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	f.Close()

	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return "", errEditorFailed
	}
	cmd := exec.Command(parts[0], append(parts[1:], f.Name())...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %v", errEditorFailed, err)
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
