// Command agentserver serves an agent behind the MLflow-compatible
// POST /invocations endpoint.
//
// Usage:
//
//	agentserver serve --config config.yaml
//	agentserver serve --port 9000
//
// Configuration is read from a YAML file and AGENTSERVER_* environment
// variables; see pkg/config.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
