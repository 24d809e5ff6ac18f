package main

import "github.com/KaramelBytes/flightinsights/cmd"

func main() {
	cmd.Execute()
}
