// SPDX-License-Identifier: MPL-2.0

// Command pickup bundles JavaScript modules into a single program.
package main

import cmd "pickup-cli/cmd/pickup"

func main() {
	cmd.Execute()
}
