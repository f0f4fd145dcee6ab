package main

import "github.com/Alijeyrad/rookie_backend/cmd"

func main() {
	cmd.Execute()
}
