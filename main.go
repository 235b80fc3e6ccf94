package main

import "citisampler/cmd"

func main() {
	cmd.Execute()
}
