// Command opsgate runs the SRE agent gateway daemon.
package main

import "github.com/opsgate/opsgate/cmd/opsgate/cmd"

func main() {
	cmd.Execute()
}
