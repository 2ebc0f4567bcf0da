// Command memberctl runs member register maintenance from the shell.
package main

import "github.com/dalemusser/stratamembers/internal/cli"

func main() {
	cli.Execute()
}
