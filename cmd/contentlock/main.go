// contentlock is the content restriction daemon and its command-line
// client.
package main

import "github.com/ppiankov/contentlock/internal/cli"

func main() {
	cli.Execute()
}
