// Package cmd implements stache's CLI.
package cmd

import (
	"go.followtheprocess.codes/cli"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

const long = `
Documents are YAML, JSON, TOML or HCL files whose strings may contain
{{placeholders}}. Placeholders name a value in the environment the document
is bound to, e.g. {{db.host}} or {{hosts[0]}}, and are replaced with it.

Values are bound with '--env key=value' and '--env-file', and the builtin
environment (stache.uuid, stache.timestamp, env.HOME etc.) with '--builtins'.

A schema declares struct types for documents, fields may be required, have
defaults and be typed as String, Integer, Float, Boolean, List(T) or Map(K, V).
Documents without a schema have their type inferred.

Write {{&name}} for a literal {{name}} that is never substituted.
`

// Build builds and returns the stache CLI.
func Build() (*cli.Command, error) {
	return cli.New(
		"stache",
		cli.Short("A typed templating toolkit for configuration documents"),
		cli.Long(long),
		cli.Version(version),
		cli.Commit(commit),
		cli.BuildDate(date),
		cli.Example("Render a document, binding a value", "stache render ./app.yaml --env name=web"),
		cli.Example(
			"Render a document typed by a schema, as TOML",
			"stache render ./app.yaml --schema ./schema.yaml --env-file ./prod.yaml --format toml",
		),
		cli.Example("Check every document in a directory (recursively)", "stache check ./deploy --env-file ./prod.yaml"),
		cli.Example("List the references a document makes", "stache refs ./app.yaml"),
		cli.SubCommands(render, check, refs, schema),
	)
}
