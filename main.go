package main

import (
	cmd "github.com/printforge/timelapse-exporter/cmd/main"
)

func main() {
	cmd.Run()
}
