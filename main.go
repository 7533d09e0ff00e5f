package main

import "prefs-manager/cmd"

func main() {
	cmd.Execute()
}
