package main

import (
	"github.com/mikeydub/indexing-serv/indexer/cmd"
)

func main() {
	cmd.Execute()
}
