package main

import "github.com/24f2000010/TDS-PROJ2-T32025/internal/cli"

func main() {
	cli.Execute()
}
