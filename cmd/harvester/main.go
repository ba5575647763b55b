package main

import (
	"context"

	"linkedin-harvester/cmd/harvester/cmd"
)

func main() {
	cmd.ExecuteContext(context.Background())
}
