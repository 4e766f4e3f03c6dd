package main

import "github.com/KaramelBytes/crashlens/cmd"

func main() {
	cmd.Execute()
}
