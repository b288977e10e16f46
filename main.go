package main

import "github.com/isometry/ldapfill/cmd"

func main() {
	cmd.Execute()
}
