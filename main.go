package main

import "github.com/voltmart/payments/cmd"

func main() {
	cmd.Execute()
}
