package main

import "github.com/elvisthlg/whisper-api/cmd/whisper-api/cmd"

func main() {
	cmd.Execute()
}
