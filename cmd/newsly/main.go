package main

import (
	"newsly/cmd/handlers"
)

func main() {
	handlers.Execute()
}
