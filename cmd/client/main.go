// client is a command-line client for the session service: log a device in
// or out, inspect the active session, and answer approval requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/MarkJaven/thodemy-sub002/internal/client"
	"github.com/MarkJaven/thodemy-sub002/internal/config"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Server base URL")
	token := flag.String("token", os.Getenv("THODEMY_TOKEN"), "Access token (defaults to THODEMY_TOKEN)")
	deviceInfo := flag.String("device-info", "", "Human-readable device label sent on login")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	if *token == "" {
		log.Fatal("access token required: pass -token or set THODEMY_TOKEN")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	c := client.New(*server, *token, cfg.DeviceStatePath)
	ctx := context.Background()

	switch flag.Arg(0) {
	case "login":
		s, err := c.Login(ctx, *deviceInfo)
		if err != nil {
			log.Fatalf("login: %v", err)
		}
		fmt.Printf("logged in as %s on %s\n", s.UserID, s.DeviceInfo)
	case "logout":
		if err := c.Logout(ctx); err != nil {
			log.Fatalf("logout: %v", err)
		}
		fmt.Println("logged out")
	case "logout-all":
		if err := c.LogoutAll(ctx); err != nil {
			log.Fatalf("logout-all: %v", err)
		}
		fmt.Println("all sessions ended")
	case "status":
		holds, s, err := c.Active(ctx)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		fmt.Printf("this device active: %v\n", holds)
		if s != nil {
			fmt.Printf("session held by %s (last activity %s)\n", s.DeviceInfo, s.LastActivityAt)
		} else {
			fmt.Println("no active session")
		}
	case "pending":
		req, err := c.Pending(ctx)
		if err != nil {
			log.Fatalf("pending: %v", err)
		}
		if req == nil {
			fmt.Println("no pending request")
			return
		}
		fmt.Printf("pending request %s from %s\n", req.RequestID, req.DeviceLabel)
	case "approve", "deny":
		if flag.NArg() < 2 {
			log.Fatalf("%s requires a request id", flag.Arg(0))
		}
		action := "approved"
		if flag.Arg(0) == "deny" {
			action = "denied"
		}
		status, err := c.Resolve(ctx, flag.Arg(1), action)
		if err != nil {
			log.Fatalf("%s: %v", flag.Arg(0), err)
		}
		fmt.Printf("request settled: %s\n", status)
	case "device-id":
		fmt.Println(c.DeviceID())
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: client [flags] <command>

commands:
  login        claim the account's session slot for this device
  logout       end this device's session
  logout-all   end the account's session on every device
  status       show whether this device holds the active session
  pending      show the account's pending approval request
  approve <id> approve a pending login from another device
  deny <id>    deny a pending login from another device
  device-id    print this installation's device id`)
	flag.PrintDefaults()
}
