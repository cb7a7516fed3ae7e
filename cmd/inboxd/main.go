package main

import "github.com/inboxd/inboxd/cmd/inboxd/cmd"

func main() {
	cmd.Execute()
}
