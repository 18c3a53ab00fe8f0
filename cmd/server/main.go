package main

import "revwork/internal/app/server"

func main() {
	server.Run()
}
