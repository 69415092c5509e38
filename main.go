package main

import "github.com/KaramelBytes/askcsv/cmd"

func main() {
	cmd.Execute()
}
