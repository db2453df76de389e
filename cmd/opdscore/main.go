package main

import "opdscore/internal/app"

func main() {
	app.Execute()
}
