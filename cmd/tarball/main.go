// Command tarball creates, extracts, and inspects ustar archives.
package main

import "github.com/meigma/tarball/internal/cli"

func main() {
	cli.Execute()
}
