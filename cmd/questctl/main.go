package main

import "questboard/cmd/questctl/root"

func main() {
	root.Execute()
}
