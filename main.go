// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/stwsaver/stwlaunch/cmd/stwlaunch"

func main() {
	cmd.Execute()
}
