// Command contractd serves data contract tests, linting and exports over HTTP.
package main

import "github.com/contractd/contractd/pkg/cli"

func main() {
	cli.Execute()
}
