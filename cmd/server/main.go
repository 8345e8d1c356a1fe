package main

import (
	"github.com/Sh4yy/FeedStream/server"
)

func main() {
	server.Init()
}
