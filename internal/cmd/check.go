package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/cli/flag"
	"go.followtheprocess.codes/stache/internal/stache"
)

const checkLong = `
The path argument may be a directory or a file.

If it is the name of a document, then this document alone is checked.

If it is a directory, this directory is scanned recursively for all
files with a '.yaml', '.yml', '.json', '.toml' or '.hcl' extension and
every one except the schema and env files is checked.

A document fails the check if any of its references are unresolved, if it
does not type check once interpolated, or if it cannot be loaded at all.
Unresolved references are reported with the closest bound reference.
`

// check returns the check subcommand.
func check() (*cli.Command, error) {
	var options stache.CheckOptions

	return cli.New(
		"check",
		cli.Short("Check documents resolve and type check"),
		cli.Long(checkLong),
		cli.Arg(&options.Path, "path", "Path to check, may be directory or file", cli.ArgDefault(".")),
		cli.Flag(&options.Env, "env", 'e', "Bind a value, in key=value form"),
		cli.Flag(&options.EnvFiles, "env-file", flag.NoShortHand, "Bind the contents of a document"),
		cli.Flag(&options.Schema, "schema", 's', "Path to a schema declaring the documents' types"),
		cli.Flag(&options.Type, "type", 't', "Type of the documents, defaults to the schema root"),
		cli.Flag(&options.Builtins, "builtins", 'b', "Bind the builtin environment"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := stache.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Check(ctx, options)
		}),
	)
}
