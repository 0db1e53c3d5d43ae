package main

import (
	"os"

	"github.com/docopt/docopt-go"
	"github.com/fatih/color"
	"github.com/yaoapp/duet"
)

// Version the duet command version
const Version = "0.1.0"

const usage = `Duet, the dual isolate runtime.

Usage:
    duet replay <log> [--expect=<file> [--update]]
    duet check <log>
    duet serve [--config=<file>] [--listen=<addr>]
    duet connect <url> [--config=<file>] [--log=<log>]
    duet -h | --help
    duet --version

Options:
    -h --help          Show this screen.
    --version          Show version.
    --expect=<file>    Compare the replayed tree with the tree in the file.
    --update           Patch the expect file when the trees differ.
    --config=<file>    The option file (.yml .yaml or .json).
    --listen=<addr>    Override the listen address of the option.
    --log=<log>        Record the operation log before reading the tree.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		fail(err)
	}

	if replay_, _ := opts.Bool("replay"); replay_ {
		update, _ := opts.Bool("--update")
		err = replay(os.Stdout, arg(opts, "<log>"), arg(opts, "--expect"), update)
	} else if check_, _ := opts.Bool("check"); check_ {
		err = check(os.Stdout, arg(opts, "<log>"))
	} else if serve_, _ := opts.Bool("serve"); serve_ {
		var option *duet.Option
		option, err = loadOption(opts)
		if err == nil {
			err = serve(option)
		}
	} else if connect_, _ := opts.Bool("connect"); connect_ {
		var option *duet.Option
		option, err = loadOption(opts)
		if err == nil {
			err = connect(os.Stdout, arg(opts, "<url>"), option, arg(opts, "--log"))
		}
	}

	if err != nil {
		fail(err)
	}
}

func loadOption(opts docopt.Opts) (*duet.Option, error) {
	option := &duet.Option{}
	if file := arg(opts, "--config"); file != "" {
		var err error
		option, err = duet.LoadOption(file)
		if err != nil {
			return nil, err
		}
	}

	if listen := arg(opts, "--listen"); listen != "" {
		option.Listen = listen
	}

	option.Validate()
	option.ApplyLogLevel()
	return option, nil
}

// arg the string value of an argument, empty when absent
func arg(opts docopt.Opts, key string) string {
	if value, ok := opts[key].(string); ok {
		return value
	}
	return ""
}

func fail(err error) {
	color.Red("%s", err.Error())
	os.Exit(1)
}
