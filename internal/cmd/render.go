package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/cli/flag"
	"go.followtheprocess.codes/stache/internal/stache"
)

const renderLong = `
The document is loaded (by extension), typed, bound to every source and
interpolated, then exported in the format given by '--format'.

Sources take precedence in order: '--env' over '--env-file' (later files
over earlier ones) over the builtin environment.

References that cannot be resolved are left in place and reported as
warnings, or fail the render with '--strict'. Pass '--interactive' to be
prompted for their values instead.

With '--watch', the document is rendered again every time it, the schema
or any of the env files change.
`

// render returns the stache render subcommand.
func render() (*cli.Command, error) {
	var options stache.RenderOptions

	return cli.New(
		"render",
		cli.Short("Interpolate a document and export the result"),
		cli.Long(renderLong),
		cli.Arg(&options.Path, "file", "Path to the document"),
		cli.Flag(&options.Env, "env", 'e', "Bind a value, in key=value form"),
		cli.Flag(&options.EnvFiles, "env-file", flag.NoShortHand, "Bind the contents of a document"),
		cli.Flag(&options.Schema, "schema", 's', "Path to a schema declaring the document's types"),
		cli.Flag(&options.Type, "type", 't', "Type of the document, defaults to the schema root"),
		cli.Flag(&options.Builtins, "builtins", 'b', "Bind the builtin environment"),
		cli.Flag(
			&options.Format,
			"format",
			'f',
			"Export format, one of (env|hcl|json|toml|yaml)",
			cli.FlagDefault(stache.DefaultFormat),
		),
		cli.Flag(&options.Output, "output", 'o', "Name of a file to save the rendered document"),
		cli.Flag(&options.Strict, "strict", flag.NoShortHand, "Fail if any reference is unresolved"),
		cli.Flag(&options.Interactive, "interactive", 'i', "Prompt for unresolved references"),
		cli.Flag(&options.Watch, "watch", 'w', "Render again whenever an input changes"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := stache.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Render(ctx, options)
		}),
	)
}
