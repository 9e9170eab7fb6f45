package main

import (
	"github.com/joho/godotenv"

	"github.com/nextlevelbuilder/barkeep/cmd"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
