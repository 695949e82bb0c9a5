// Command gdpctl is the operator CLI for a gdp-router deployment: it can
// query a running RIB node for a name's resolved address, or dump the
// static routes file a node bootstraps from.
package main

import "github.com/dantte-lp/gdp-router/cmd/gdpctl/commands"

func main() {
	commands.Execute()
}
