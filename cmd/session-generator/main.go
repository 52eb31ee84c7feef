package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kx0101/sessioncheck/internal/sessiongen"
)

func main() {
	output := flag.String("output", "sessions.ndjson", "Output file path")
	count := flag.Int("count", 100, "Number of sessions to generate")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()

	file, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	sessions := sessiongen.New(*seed, time.Now()).Generate(*count)
	if err := sessiongen.WriteNDJSON(file, sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write sessions: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d sessions to %s\n", *count, *output)
}
