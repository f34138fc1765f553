package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rondo/internal/agent"
	"rondo/internal/security"
	"rondo/internal/utils"
)

func main() {
	flag.Usage = func() {
		fmt.Println()
		fmt.Println("  rondo-agent — device-side signaling client")
		fmt.Println()
		fmt.Println("  Usage:")
		fmt.Println("    rondo-agent -id <device-id> [-local 127.0.0.1:3000]")
		fmt.Println("    rondo-agent -id <device-id> -relay <target-id>")
		fmt.Println()
		fmt.Println("  Flags:")
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("    -%-8s %s\n", f.Name, f.Usage)
		})
		fmt.Println()
	}

	serverURL := flag.String("server", utils.GetEnv("RONDO_SERVER", "http://localhost:8080"), "signaling server URL")
	deviceID := flag.String("id", "", "device id to register as")
	localAddr := flag.String("local", "", "local address inbound relay streams are forwarded to")
	punchTarget := flag.String("punch", "", "request a hole punch toward this device id")
	punchAddr := flag.String("addr", "", "candidate address advertised with -punch")
	relayTarget := flag.String("relay", "", "request a relayed connection toward this device id")
	flag.Parse()

	if *deviceID == "" {
		flag.Usage()
		os.Exit(1)
	}
	if !security.ValidateDeviceID(*deviceID) {
		log.Fatalf("Invalid device id: %s", *deviceID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.New(agent.Config{
		ServerURL: strings.TrimSuffix(*serverURL, "/"),
		DeviceID:  *deviceID,
		LocalAddr: *localAddr,
	})

	if err := a.Register(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := a.Connect(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer a.Close()

	if *punchTarget != "" {
		if err := a.Punch(*punchTarget, *punchAddr); err != nil {
			log.Fatalf("❌ Punch request failed: %v", err)
		}
	}
	if *relayTarget != "" {
		if err := a.Relay(*relayTarget); err != nil {
			log.Fatalf("❌ Relay request failed: %v", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Println("👋 Shutting down")
	case err := <-done:
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
}
