// ws_probe is a terminal client for poking the relay: it connects as an
// agent, prints every frame it receives, and lets you change status from
// stdin. It reconnects automatically, like the dashboard softphone does.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Jobcall26/jobdial-server/internal/log"
	"github.com/Jobcall26/jobdial-server/internal/relay/client"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "relay WebSocket address")
	userID := flag.Int64("user", 1, "user id to authenticate as")
	token := flag.String("token", "", "JWT to authenticate with (overrides -user)")
	flag.Parse()

	logger := log.New("debug")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Options{
		URL:    *addr,
		UserID: *userID,
		Token:  *token,
		Logger: logger,
		OnToast: func(title, message string) {
			fmt.Printf("[toast] %s: %s\n", title, message)
		},
	})
	defer c.Close()

	for _, msgType := range []string{
		proto.TypeConnectionEstablished,
		proto.TypeAuthSuccess,
		proto.TypeAuthFailed,
		proto.TypeAgentStatusChange,
		proto.TypeAgentDisconnected,
		proto.TypeCallEvent,
		proto.TypeSupervisionAlert,
		proto.TypeSpyStarted,
		proto.TypeSpyStopped,
	} {
		c.OnMessage(msgType, printFrame)
	}

	c.Start(ctx)

	fmt.Printf("Probing %s as user %d\n", *addr, *userID)
	fmt.Println("Commands: status <available|on_call|paused>, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "quit":
			return
		case strings.HasPrefix(line, "status "):
			status := strings.TrimPrefix(line, "status ")
			if err := c.SendStatus(ctx, status); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		case line == "":
		default:
			fmt.Println("unknown command")
		}
	}
}

func printFrame(frame proto.Frame) {
	var data any
	_ = json.Unmarshal(frame.Data, &data)
	fmt.Printf("[%s] %v\n", frame.Type, data)
}
