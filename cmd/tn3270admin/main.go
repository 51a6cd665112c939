// Command tn3270admin is a terminal UI client for a running gateway's
// admin control socket: it shows live session status and lets the
// operator reload config, change the log level, or shut the proxy
// down.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neo6/tn3270gw/internal/adminclient"
	"github.com/neo6/tn3270gw/internal/admintui"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:2324", "gateway admin socket address")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	client, err := adminclient.Dial(*addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tn3270admin: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	model := admintui.New(client, *addr)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tn3270admin: %v\n", err)
		os.Exit(1)
	}
}
