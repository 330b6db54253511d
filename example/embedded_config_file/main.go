package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/loykin/initd"
)

// This example loads a TOML config file and prints the validated service
// descriptors using the public initd facade.
func main() {
	// Use the sample config in the repo (adjust path if running from a different cwd)
	cfgPath := filepath.Join("config", "initd.toml")
	cfg, err := initd.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	specs, err := cfg.Specs()
	if err != nil {
		panic(err)
	}
	b, _ := json.MarshalIndent(specs, "", "  ")
	fmt.Println(string(b))
	fmt.Printf("%d services configured, grace period %s\n",
		len(specs), cfg.Supervisor.GracePeriod)
}
