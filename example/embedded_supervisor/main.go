package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loykin/initd"
)

// This example embeds the supervisor directly: it registers two services,
// launches them and supervises for a few seconds before shutting down.
func main() {
	log, err := initd.NewLogger(initd.LoggerConfig{MinLevel: "info"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Close() }()

	sup := initd.New(initd.SupervisorConfig{GracePeriod: 2 * time.Second},
		initd.NewExecSpawner(initd.CaptureConfig{}), log)

	specs := []initd.Spec{
		{
			Name:     "ticker",
			ExecPath: "/bin/sh",
			Args:     []string{"-c", "while true; do sleep 1; done"},
			Restart:  initd.RestartAlways,
		},
		{
			Name:     "oneshot",
			ExecPath: "/bin/sh",
			Args:     []string{"-c", "exit 0"},
			Restart:  initd.RestartNever,
		},
	}
	for _, sp := range specs {
		if err := sup.Register(sp); err != nil {
			panic(err)
		}
	}

	sup.LaunchAll()

	// Supervise for 3 seconds, then let the context trigger shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go func() {
		time.Sleep(time.Second)
		b, _ := json.MarshalIndent(sup.StatusAll(), "", "  ")
		fmt.Println(string(b))
	}()
	if err := sup.Run(ctx); err != nil {
		panic(err)
	}
	fmt.Println("all services stopped")
}
