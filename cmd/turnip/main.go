package main

import "turnip/internal/turnip"

func main() {
	turnip.Main()
}
