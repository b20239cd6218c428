package main

import "github.com/dverna/alarm-guardian/cmd/alarm-guardian/cmd"

func main() {
	cmd.Execute()
}
