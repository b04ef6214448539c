package main

import (
	_ "github.com/joho/godotenv/autoload"

	"siteimage/internal/cli"
)

func main() {
	cli.Execute()
}
