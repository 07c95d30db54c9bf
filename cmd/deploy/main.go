package main

import (
	"log"
	"os"

	"github.com/xintai6660707/ore-refined/internal/bot"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	bot.Run(os.Args[1:])
}
