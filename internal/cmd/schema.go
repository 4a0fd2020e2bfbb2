package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/stache/internal/stache"
)

// schema returns the stache schema subcommand.
func schema() (*cli.Command, error) {
	var options stache.SchemaOptions

	return cli.New(
		"schema",
		cli.Short("Validate a schema and show the types it declares"),
		cli.Arg(&options.Path, "file", "Path to the schema"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := stache.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Schema(ctx, options)
		}),
	)
}
