package main

import (
	"fmt"
	"os"

	"github.com/spherical/ocr-extractor/cmd/ocr-extractor/commands"
	"github.com/spherical/ocr-extractor/internal/ocr/tesseract"
)

var version = "1.0.0"

func main() {
	if err := commands.Execute(version, tesseract.Factory); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
