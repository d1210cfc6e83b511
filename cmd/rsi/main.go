/*
Rsi starts an interactive RiveScript console session.

It loads a directory of RiveScript source files and starts an interactive
read-eval-print loop, printing the bot's replies to stdout and reading user
input from stdin until the user quits.

Usage:

	rsi [flags]

The flags are:

	-s, --source DIR
		The directory of RiveScript source files to load. Defaults to
		"./brain" in the current working directory.

	-u, --user ID
		The user id to chat as. Defaults to a freshly generated id, so that
		each session starts with a clean history.

	-d, --direct
		Force reading directly from stdin instead of going through GNU
		readline, even when stdin and stdout are both a tty.

	-w, --watch
		Watch the source directory and reload the brain whenever a file in
		it changes.

	-c, --config FILE
		Load engine options from a TOML config file instead of using the
		built-in defaults.

Once a session has started, anything typed is sent to the bot as a message
and its reply is printed back. Type "/quit" to exit.
*/
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/dekarrin/rosed"

	"github.com/rivebot/rivescript/internal/rsconfig"
	"github.com/rivebot/rivescript/internal/rsconsole"
	"github.com/rivebot/rivescript/internal/rsfile"
	"github.com/rivebot/rivescript/internal/rsopts"

	rivescript "github.com/rivebot/rivescript"
)

const (
	exitSuccess = iota
	exitInitError
	exitRuntimeError
)

const consoleOutputWidth = 80

var (
	returnCode  int
	sourceDir   = pflag.StringP("source", "s", "./brain", "Directory of RiveScript source to load")
	userID      = pflag.StringP("user", "u", "", "User id to chat as (default: a freshly generated id)")
	forceDirect = pflag.BoolP("direct", "d", false, "Force reading directly from stdin instead of readline")
	watch       = pflag.BoolP("watch", "w", false, "Watch the source directory and reload on change")
	configFile  = pflag.StringP("config", "c", "", "TOML config file with engine options")
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", r))
		}
		os.Exit(returnCode)
	}()

	pflag.Parse()

	opts := rsopts.Default()
	dir := *sourceDir
	if *configFile != "" {
		cfg, err := rsconfig.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			returnCode = exitInitError
			return
		}
		cfg = cfg.FillDefaults()
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: invalid config: %s\n", err)
			returnCode = exitInitError
			return
		}
		opts = cfg.Options()
		dir = cfg.SourceDir
		if cfg.Watch {
			*watch = true
		}
	}

	bot := rivescript.New(opts, nil)

	var closeBrain func()
	if *watch {
		w, err := rsfile.Watch(bot, dir, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: loading %s: %s\n", dir, err)
			returnCode = exitInitError
			return
		}
		closeBrain = func() { w.Close() }
	} else {
		if err := rsfile.LoadDirectory(bot, dir); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: loading %s: %s\n", dir, err)
			returnCode = exitInitError
			return
		}
		closeBrain = func() {}
	}
	defer closeBrain()

	user := *userID
	if user == "" {
		user = uuid.NewString()
	}

	useReadline := !*forceDirect
	for _, f := range []*os.File{os.Stdin, os.Stdout} {
		if fi, statErr := f.Stat(); statErr != nil || fi.Mode()&os.ModeCharDevice == 0 {
			useReadline = false
		}
	}
	var in rsconsole.Reader
	var err error
	if useReadline {
		in, err = rsconsole.NewInteractiveReader("> ")
	} else {
		in = rsconsole.NewDirectReader(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: initializing input reader: %s\n", err)
		returnCode = exitInitError
		return
	}
	defer in.Close()

	if err := runLoop(bot, in, os.Stdout, user); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		returnCode = exitRuntimeError
	}
}

func runLoop(bot *rivescript.Bot, in rsconsole.Reader, out io.Writer, user string) error {
	for {
		line, err := in.ReadLine()
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "/quit") {
			return nil
		}

		reply := bot.Reply(user, line)
		wrapped := rosed.Edit(reply).Wrap(consoleOutputWidth).String()
		fmt.Fprintln(out, wrapped)
	}
}
