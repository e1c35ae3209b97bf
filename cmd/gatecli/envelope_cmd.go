package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"settlegate/internal/domain"
	"settlegate/pkg/envelope"
)

func loadEnvelope(path string) (domain.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("read envelope: %w", err)
	}
	return envelope.Unmarshal(data)
}

func runEnvelopeCanonical(args []string) int {
	fs := flag.NewFlagSet("envelope canonical", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	fs.StringVar(&inPath, "in", "", "envelope JSON path")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "envelope canonical requires --in")
		return 1
	}

	env, err := loadEnvelope(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	canonical, err := envelope.Canonical(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canonicalize envelope: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, canonical); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runEnvelopeHash(args []string) int {
	fs := flag.NewFlagSet("envelope hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	fs.StringVar(&inPath, "in", "", "envelope JSON path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "envelope hash requires --in")
		return 1
	}

	env, err := loadEnvelope(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	hash, err := envelope.Hash(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash envelope: %v\n", err)
		return 1
	}
	fmt.Printf("%s:%s\n", domain.HashAlgSHA256V1, hex.EncodeToString(hash))
	return 0
}
