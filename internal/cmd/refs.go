package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/stache/internal/stache"
)

// refs returns the stache refs subcommand.
func refs() (*cli.Command, error) {
	var options stache.RefsOptions

	return cli.New(
		"refs",
		cli.Short("List the distinct references a document makes"),
		cli.Arg(&options.Path, "file", "Path to the document"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := stache.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Refs(ctx, options)
		}),
	)
}
