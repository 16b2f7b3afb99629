package main

import "upscale-viewer/internal/cli"

func main() {
	cli.Execute()
}
