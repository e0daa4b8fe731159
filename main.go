package main

import "clubbot/internal/app"

func main() {
	app.Main()
}
