package main

import "github.com/dnitsch/aws-role-cache/cmd"

func main() {
	cmd.Execute()
}
