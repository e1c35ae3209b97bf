package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "envelope":
		if len(args) >= 3 {
			switch args[2] {
			case "canonical":
				return runEnvelopeCanonical(args[3:])
			case "hash":
				return runEnvelopeHash(args[3:])
			}
		}
	case "plan":
		if len(args) >= 3 && args[2] == "build" {
			return runPlanBuild(args[3:])
		}
	case "verify":
		return runVerify(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "gatecli"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s envelope canonical --in <envelope.json> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s envelope hash --in <envelope.json>\n", name)
	fmt.Fprintf(os.Stderr, "  %s plan build --nodes <nodes.json> --horizon-start <rfc3339> --horizon-end <rfc3339> --base-epoch <n> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --envelope <envelope.json> --attestation <attestation.json> --signer-id <id> [--classical-pubkey-hex <hex>] [--pq-pubkey-hex <hex>]\n", name)
}
